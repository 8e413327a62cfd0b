package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gateway-automator/internal/automation"
	"gateway-automator/internal/capture"
	"gateway-automator/internal/config"
	diffimage "gateway-automator/internal/diff/image"
	"gateway-automator/internal/reference"
	"gateway-automator/internal/retry"
	"gateway-automator/internal/routes"
	"gateway-automator/internal/runnable"
	"gateway-automator/internal/storage"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type Verifier struct {
	Capturer   capture.Capturer
	References *reference.Store
	Storage    storage.Storage
	Thresholds diffimage.Thresholds
	Logger     logr.Logger
}

func main() {
	c, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var name string
	var step string
	var callbackURL string
	var upload bool
	flag.StringVar(&name, "reference", "", "Reference image name, defaults to the target state of IB_API_TYPE and IB_TRADING_MODE")
	flag.StringVar(&step, "step", automation.StepTargetState, "Step whose thresholds apply")
	flag.StringVar(&c.ReferenceDir, "reference-dir", c.ReferenceDir, "Directory of reference screenshots (REFERENCE_DIR)")
	flag.StringVar(&c.ThresholdsFile, "thresholds-file", c.ThresholdsFile, "YAML file overriding per-step thresholds (THRESHOLDS_FILE)")
	flag.StringVar(&c.StorageBackend, "storage-backend", c.StorageBackend, "Storage backend (file or s3)")
	flag.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket when the storage backend is s3")
	flag.StringVar(&callbackURL, "callback-url", config.EnvOrDefaultValue("CALLBACK_URL", ""), "Screenshot server verifications URL to send results to")
	flag.BoolVar(&upload, "upload", config.EnvOrDefaultValue("UPLOAD", true), "Store the capture and the annotated diff")
	flag.BoolVar(&runnable.Debug, "debug", false, "Human readable debug logging")

	flag.Parse()

	if err := c.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if name == "" {
		name = reference.TargetState(c.APIType, c.TradingMode)
	}

	slogger, err := runnable.NewLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	logger := runnable.NewLogr(slogger)

	ctx := context.Background()

	thresholds, err := automation.LoadStepThresholds(c.ThresholdsFile)
	if err != nil {
		log.Fatalf("failed to load thresholds: %v", err)
	}

	capturer, err := capture.New(ctx, c, "verify_check.png", logger.WithName("capture"))
	if err != nil {
		log.Fatalf("failed to initialize capturer: %v", err)
	}

	var s storage.Storage
	if upload {
		s, err = storage.New(ctx, c.StorageBackend, c.ScreenshotDir, c.S3Bucket)
		if err != nil {
			log.Fatalf("failed to create storage backend: %v", err)
		}
	}

	verifier := &Verifier{
		Capturer:   capturer,
		References: reference.NewStore(c.ReferenceDir, logger.WithName("reference")),
		Storage:    s,
		Thresholds: thresholds.For(step),
		Logger:     logger.WithName("verify"),
	}

	report, err := verifier.verify(ctx, name)
	if err != nil {
		log.Fatalf("failed to verify %s: %v", name, err)
	}

	j, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else {
		if err := callback(ctx, callbackURL, j); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}

	if !report.Matched {
		logger.Info("State not matched", "reference", name, "thresholds", verifier.Thresholds.String(), "last", report.Result.String())
		os.Exit(1)
	}
}

func (v *Verifier) verify(ctx context.Context, name string) (*routes.VerificationReport, error) {
	referenceImage, err := v.References.Load(name)
	if err != nil {
		return nil, err
	}

	current, err := v.Capturer.Capture(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to capture screenshot: %w", err)
	}

	diff, err := diffimage.NewPixelComparator().Calculate(referenceImage, current.Image, v.Thresholds)
	if err != nil {
		return nil, xerrors.Errorf("failed to compare with %s: %w", name, err)
	}

	report := &routes.VerificationReport{
		Reference: name,
		Matched:   diff.Result.IsMatch,
		Result:    diff.Result,
		Regions:   diffimage.FindRegions(diff.Image),
	}
	v.Logger.Info("Compared with reference", "reference", name, "matched", report.Matched, "result", diff.Result.String(), "regions", len(report.Regions))

	if v.Storage == nil {
		return report, nil
	}

	base := fmt.Sprintf("verify/%s/%s", strings.TrimSuffix(name, ".png"), time.Now().Format("20060102150405"))
	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			data, err := current.PNG()
			if err != nil {
				return xerrors.Errorf("failed to encode capture: %w", err)
			}
			url, err := v.Storage.Put(ctx, base+"_capture.png", data)
			if err != nil {
				return xerrors.Errorf("failed to upload capture: %w", err)
			}
			report.CaptureURL = url
			return nil
		})

		eg.Go(func() error {
			data, err := diffimage.EncodePNG(diffimage.Annotate(current.Image, report.Regions))
			if err != nil {
				return xerrors.Errorf("failed to encode diff image: %w", err)
			}
			url, err := v.Storage.Put(ctx, base+"_diff.png", data)
			if err != nil {
				return xerrors.Errorf("failed to upload diff image: %w", err)
			}
			report.DiffURL = url
			return nil
		})

		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func callback(ctx context.Context, callbackURL string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &retry.Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: retry.NewExponentialBackOff(100*time.Millisecond, 2*time.Second, 5, nil),
			RetryOn:       retry.NewDefaultRetryOn(),
			PerTryTimeout: 1 * time.Second,
		},
	}

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return xerrors.Errorf("callback returned %s", response.Status)
	}
	return nil
}
