package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gateway-automator/internal/config"
	diffimage "gateway-automator/internal/diff/image"
	"gateway-automator/internal/storage"
)

const (
	exitChanges = 0
	exitSimilar = 1
	exitError   = 2
)

type DiffOutput struct {
	diffimage.ComparisonResult
	BaselineSize    int64              `json:"baseline_size"`
	TargetSize      int64              `json:"target_size"`
	SizeDiffPercent float64            `json:"size_diff_percent"`
	Regions         []diffimage.Region `json:"regions"`
	DiffPath        string             `json:"diff_path,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var threshold float64
	var maxDiffPercentage float64
	var save bool
	var directory string
	var storageBackend string
	var bucket string
	flag.Float64Var(&threshold, "threshold", config.EnvOrDefaultValue("THRESHOLD", diffimage.DefaultThresholds().Threshold), "Mean difference threshold as a fraction of 255")
	flag.Float64Var(&maxDiffPercentage, "max-diff-percentage", config.EnvOrDefaultValue("MAX_DIFF_PERCENTAGE", diffimage.DefaultThresholds().MaxDiffPercentage), "Share of changed pixels (0-100) still considered unchanged")
	flag.BoolVar(&save, "save", config.EnvOrDefaultValue("SAVE_DIFF", false), "Store an annotated diff image")
	flag.StringVar(&directory, "directory", config.EnvOrDefaultValue("SCREENSHOT_DIR", "/tmp/screenshots"), "Output directory")
	flag.StringVar(&storageBackend, "storage-backend", config.EnvOrDefaultValue("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&bucket, "s3-bucket", config.EnvOrDefaultValue("S3_BUCKET", ""), "S3 bucket when the storage backend is s3")

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Printf("Usage: %s [flags] <baseline> <target>", os.Args[0])
		return exitError
	}
	baselinePath := args[0]
	targetPath := args[1]

	baselineInfo, err := os.Stat(baselinePath)
	if err != nil {
		log.Printf("Image not found: %v", err)
		return exitError
	}
	targetInfo, err := os.Stat(targetPath)
	if err != nil {
		log.Printf("Image not found: %v", err)
		return exitError
	}

	baselineImage, err := diffimage.Load(baselinePath)
	if err != nil {
		log.Printf("Failed to load baseline image: %v", err)
		return exitError
	}
	targetImage, err := diffimage.Load(targetPath)
	if err != nil {
		log.Printf("Failed to load target image: %v", err)
		return exitError
	}

	thresholds := diffimage.Thresholds{
		Threshold:         threshold,
		MaxDiffPercentage: maxDiffPercentage,
	}
	diffResult, err := diffimage.NewPixelComparator().Calculate(baselineImage, targetImage, thresholds)
	if err != nil {
		log.Printf("Failed to compare images: %v", err)
		return exitError
	}

	output := DiffOutput{
		ComparisonResult: diffResult.Result,
		BaselineSize:     baselineInfo.Size(),
		TargetSize:       targetInfo.Size(),
		SizeDiffPercent:  sizeDiffPercent(baselineInfo.Size(), targetInfo.Size()),
		Regions:          diffimage.FindRegions(diffResult.Image),
	}

	if save {
		ctx := context.Background()
		s, err := storage.New(ctx, storageBackend, directory, bucket)
		if err != nil {
			log.Printf("Failed to create storage backend: %v", err)
			return exitError
		}

		data, err := diffimage.EncodePNG(diffimage.Annotate(targetImage, output.Regions))
		if err != nil {
			log.Printf("Failed to encode diff image: %v", err)
			return exitError
		}

		h := sha256.New()
		h.Write([]byte(baselinePath + targetPath))
		hash := fmt.Sprintf("%x", h.Sum(nil))[:16]
		key := fmt.Sprintf("diff/%s/%s.png", hash, time.Now().Format("20060102150405"))
		output.DiffPath, err = s.Put(ctx, key, data)
		if err != nil {
			log.Printf("Failed to save diff image: %v", err)
			return exitError
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		log.Printf("Failed to encode result: %v", err)
		return exitError
	}

	if output.HasChanges {
		return exitChanges
	}
	return exitSimilar
}

func sizeDiffPercent(a int64, b int64) float64 {
	larger := max(a, b)
	if larger == 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return float64(d) / float64(larger) * 100
}
