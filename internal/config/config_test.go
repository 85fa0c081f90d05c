package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "MODEL_DIR", "DETECTOR_MODEL", "FEATURE_MODEL", "FEATURE_LAYER",
		"PIPELINE_BUNDLE", "DETECTOR_ENABLED", "XRAY_THRESHOLD", "MAX_UPLOAD_MB", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	chdir(t, dir)

	cfg := Load()

	if cfg.Port != 8000 {
		t.Errorf("Expected port 8000, got %d", cfg.Port)
	}
	if cfg.ModelDirectory != filepath.Join(dir, "models") {
		t.Errorf("Expected model dir under %s, got %s", dir, cfg.ModelDirectory)
	}
	if cfg.FeatureModelPath != filepath.Join(dir, "models", "fine_tuned_resnet.onnx") {
		t.Errorf("Unexpected feature model path %s", cfg.FeatureModelPath)
	}
	if cfg.PipelinePath != filepath.Join(dir, "models", "rf_pipeline.json") {
		t.Errorf("Unexpected pipeline path %s", cfg.PipelinePath)
	}
	if cfg.FeatureLayer != "global_average_pooling2d" {
		t.Errorf("Unexpected feature layer %s", cfg.FeatureLayer)
	}
	if !cfg.DetectorEnabled {
		t.Error("Detector should be enabled by default")
	}
	if cfg.XrayThreshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", cfg.XrayThreshold)
	}
	if cfg.MaxUploadSize != 10<<20 {
		t.Errorf("Expected 10MB upload limit, got %d", cfg.MaxUploadSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_DIR", "/opt/models")
	t.Setenv("DETECTOR_MODEL", "/srv/gate.onnx")
	t.Setenv("DETECTOR_ENABLED", "false")
	t.Setenv("XRAY_THRESHOLD", "0.7")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.DetectorModelPath != "/srv/gate.onnx" {
		t.Errorf("Absolute model path should be kept, got %s", cfg.DetectorModelPath)
	}
	if cfg.FeatureModelPath != filepath.Join("/opt/models", "fine_tuned_resnet.onnx") {
		t.Errorf("Relative model path should join MODEL_DIR, got %s", cfg.FeatureModelPath)
	}
	if cfg.DetectorEnabled {
		t.Error("Detector should be disabled")
	}
	if cfg.XrayThreshold != 0.7 {
		t.Errorf("Expected threshold 0.7, got %v", cfg.XrayThreshold)
	}
	if cfg.MaxUploadSize != 2<<20 {
		t.Errorf("Expected 2MB upload limit, got %d", cfg.MaxUploadSize)
	}
}

func TestGetEnvHelpers_InvalidFallBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_FLOAT", "half")
	t.Setenv("TEST_BOOL", "maybe")

	if got := getEnvAsInt("TEST_INT", 5); got != 5 {
		t.Errorf("getEnvAsInt = %d, expected 5", got)
	}
	if got := getEnvAsFloat("TEST_FLOAT", 0.25); got != 0.25 {
		t.Errorf("getEnvAsFloat = %v, expected 0.25", got)
	}
	if got := getEnvAsBool("TEST_BOOL", true); !got {
		t.Error("getEnvAsBool should fall back to true")
	}
}
