package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fractureapi/internal/config"
	"fractureapi/internal/logger"
	"fractureapi/internal/model"
	"fractureapi/internal/service"
	"fractureapi/internal/service/ai"
)

func main() {
	imagesDir := flag.String("dir", "", "Directory containing images to classify")
	extensions := flag.String("ext", ".png,.jpg,.jpeg", "Comma separated file extensions scanned in -dir")
	flag.Parse()

	files := flag.Args()
	if *imagesDir != "" {
		found, err := collectFiles(*imagesDir, parseExtensions(*extensions))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read images directory: %v\n", err)
			os.Exit(1)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: classify [-dir images] [-ext .png,.jpg] [file...]")
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.NewLogger(cfg)
	defer log.Close()

	artifacts := ai.LoadArtifacts(cfg, log)
	defer artifacts.Close()

	if !artifacts.Ready() {
		for name, status := range artifacts.Status() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, status)
		}
		fmt.Fprintln(os.Stderr, service.ErrNotReady)
		os.Exit(1)
	}

	stages := service.Stages{
		Preprocessor: ai.Preprocessor{},
		Extractor:    artifacts.Extractor,
		Classifier:   artifacts.Pipeline,
	}
	if artifacts.Detector != nil {
		stages.Detector = artifacts.Detector
	}
	manager := service.NewManager(stages, service.Readiness{Ready: true, Artifacts: artifacts.Status()},
		cfg.XrayThreshold, nil, log)

	failed := 0
	for _, path := range files {
		line, err := classify(manager, path)
		if err != nil {
			failed++
			fmt.Printf("%s\terror\t%v\n", path, err)
			continue
		}
		fmt.Println(line)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(files))
		os.Exit(2)
	}
}

func classify(manager *service.Manager, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	p, err := manager.Predict(model.Image{
		RequestID:  filepath.Base(path),
		Filename:   filepath.Base(path),
		Data:       raw,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		return "", err
	}
	return formatResult(path, p), nil
}

func formatResult(path string, p model.Prediction) string {
	return fmt.Sprintf("%s\t%s\t%s\t%.4f", path, p.Status, p.Label, p.Confidence)
}

func parseExtensions(list string) map[string]bool {
	exts := make(map[string]bool)
	for _, ext := range strings.Split(list, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return exts
}

// collectFiles lists the matching files of dir, sorted by name. It does not
// descend into subdirectories.
func collectFiles(dir string, exts map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
