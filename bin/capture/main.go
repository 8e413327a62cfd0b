package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"gateway-automator/internal/capture"
	"gateway-automator/internal/config"
	"gateway-automator/internal/routes"
	"gateway-automator/internal/runnable"
	"gateway-automator/internal/storage"
)

type CaptureOutput struct {
	ScreenshotPath string `json:"screenshotPath"`
	Backend        string `json:"backend"`
	Size           int    `json:"size"`
}

func main() {
	c, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var name string
	flag.StringVar(&c.ScreenshotDir, "directory", c.ScreenshotDir, "Output directory (SCREENSHOT_DIR)")
	flag.StringVar(&c.CaptureBackend, "backend", c.CaptureBackend, "Capture backend (auto, x11, scrot, import, novnc or placeholder)")
	flag.StringVar(&c.StorageBackend, "storage-backend", c.StorageBackend, "Storage backend (file or s3)")
	flag.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket when the storage backend is s3")
	flag.StringVar(&name, "name", "", "Object name, defaults to a timestamped screenshot name")
	flag.BoolVar(&runnable.Debug, "debug", false, "Human readable debug logging")

	flag.Parse()

	if err := c.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slogger, err := runnable.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, c.StorageBackend, c.ScreenshotDir, c.S3Bucket)
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	capturer, err := capture.New(ctx, c, "capture_tmp.png", runnable.NewLogr(slogger))
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}

	result, err := capturer.Capture(ctx)
	if err != nil {
		log.Fatalf("Failed to capture screenshot: %v", err)
	}

	data, err := result.PNG()
	if err != nil {
		log.Fatalf("Failed to encode screenshot: %v", err)
	}

	if name == "" {
		name = routes.ScreenshotName(time.Now())
	}
	path, err := s.Put(ctx, name, data)
	if err != nil {
		log.Fatalf("Failed to save screenshot: %v", err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(CaptureOutput{
		ScreenshotPath: path,
		Backend:        result.Backend,
		Size:           len(data),
	}); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
