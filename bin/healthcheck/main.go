package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gateway-automator/internal/config"
	"gateway-automator/internal/forward"
)

func main() {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var host string
	flag.StringVar(&host, "host", config.EnvOrDefaultValue("HEALTHCHECK_HOST", "127.0.0.1"), "Host the gateway API port listens on")
	flag.DurationVar(&c.HealthcheckTimeout, "timeout", c.HealthcheckTimeout, "Connect timeout (IBGATEWAY_HEALTHCHECK_TIMEOUT_SECONDS)")

	flag.Parse()

	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	address := fmt.Sprintf("%s:%d", host, c.GatewayPort())
	if err := forward.Probe(context.Background(), address, c.HealthcheckTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "IB Gateway API is not ready on %s (%s): %v\n", address, c.TradingMode, err)
		os.Exit(1)
	}
}
