package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gateway-automator/internal/config"
	"gateway-automator/internal/forward"
	"gateway-automator/internal/runnable"
)

func main() {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var host string
	var upstream string
	var readyTimeout time.Duration
	var dialTimeout time.Duration
	var maxConnections int
	flag.StringVar(&host, "listen-host", config.EnvOrDefaultValue("FORWARD_LISTEN_HOST", "0.0.0.0"), "Address the forwarded ports listen on")
	flag.StringVar(&upstream, "upstream-host", config.EnvOrDefaultValue("FORWARD_UPSTREAM_HOST", "127.0.0.1"), "Host the gateway API ports listen on")
	flag.DurationVar(&readyTimeout, "ready-timeout", config.EnvOrDefaultValue("FORWARD_READY_TIMEOUT", 60*time.Second), "How long to wait for the upstream ports before forwarding anyway")
	flag.DurationVar(&dialTimeout, "dial-timeout", config.EnvOrDefaultValue("FORWARD_DIAL_TIMEOUT", 5*time.Second), "Upstream dial timeout")
	flag.IntVar(&maxConnections, "max-connections", config.EnvOrDefaultValue("MAX_CONNECTIONS", 1024), "Maximum concurrent connections per route")
	flag.BoolVar(&runnable.Debug, "debug", false, "Human readable debug logging")

	flag.Parse()

	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slogger, err := runnable.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := runnable.NewLogr(slogger).WithName("forward")

	routes := []forward.Route{
		{
			Name:   "live",
			Listen: fmt.Sprintf("%s:%d", host, c.ForwardLivePort),
			Target: fmt.Sprintf("%s:%d", upstream, c.LivePort),
		},
		{
			Name:   "paper",
			Listen: fmt.Sprintf("%s:%d", host, c.ForwardPaperPort),
			Target: fmt.Sprintf("%s:%d", upstream, c.PaperPort),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets := make([]string, 0, len(routes))
	for _, route := range routes {
		targets = append(targets, route.Target)
	}
	logger.Info("Waiting for upstream ports", "targets", targets, "timeout", readyTimeout.String())
	if !forward.WaitForPorts(ctx, targets, readyTimeout, 1*time.Second) {
		logger.Info("WARNING: Upstream ports not ready, forwarding anyway")
	}

	forwarder := forward.NewForwarder(logger, maxConnections, dialTimeout)
	if err := forwarder.Run(ctx, routes...); err != nil {
		logger.Error(err, "Port forwarding failed")
		os.Exit(1)
	}

	stats := forwarder.Stats()
	logger.Info("Port forwarding stopped", "connections", stats.Connections, "bytesIn", stats.BytesIn, "bytesOut", stats.BytesOut)
}
