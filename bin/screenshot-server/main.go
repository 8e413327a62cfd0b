package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gateway-automator/internal/capture"
	"gateway-automator/internal/config"
	"gateway-automator/internal/runnable"
	"gateway-automator/internal/storage"
)

func main() {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&c.ScreenshotDir, "directory", c.ScreenshotDir, "Screenshot directory (SCREENSHOT_DIR)")
	flag.StringVar(&c.StorageBackend, "storage-backend", c.StorageBackend, "Storage backend (file or s3)")
	flag.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket when the storage backend is s3")
	flag.StringVar(&c.CaptureSchedule, "capture-schedule", c.CaptureSchedule, "Cron schedule of unattended captures, empty to disable")
	flag.BoolVar(&runnable.Debug, "debug", false, "Enable pprof handlers and human readable logs")

	flag.Parse()

	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := runnable.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, c.StorageBackend, c.ScreenshotDir, c.S3Bucket)
	if err != nil {
		logger.Error("failed to create storage backend", "error", err)
		os.Exit(1)
	}

	capturer, err := capture.New(ctx, c, "screenshot_capture.png", runnable.NewLogr(logger).WithName("capture"))
	if err != nil {
		logger.Error("failed to create capturer", "error", err)
		os.Exit(1)
	}

	if err := runnable.NewServer(c, capturer, s).Start(ctx, logger); err != nil {
		logger.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}
