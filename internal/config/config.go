package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	ModelDirectory      string
	DetectorModelPath   string
	FeatureModelPath    string
	FeatureLayer        string
	PipelinePath        string
	DetectorEnabled     bool
	XrayThreshold       float64 // Detector probability below this is rejected as not an X-ray
	OnnxRuntimeLibrary  string
	MaxUploadSize       int64 // Upload limit in bytes
	LogDirectory        string
	LogLevel            string
	ShutdownTimeoutSecs int
}

// Load reads an optional .env file and builds the configuration from the
// environment, falling back to defaults.
func Load() *Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	modelDir := getEnv("MODEL_DIR", filepath.Join(projectRoot(), "models"))

	return &Config{
		Port:                getEnvAsInt("PORT", 8000),
		ModelDirectory:      modelDir,
		DetectorModelPath:   modelFile(modelDir, getEnv("DETECTOR_MODEL", "xray_detector.onnx")),
		FeatureModelPath:    modelFile(modelDir, getEnv("FEATURE_MODEL", "fine_tuned_resnet.onnx")),
		FeatureLayer:        getEnv("FEATURE_LAYER", "global_average_pooling2d"),
		PipelinePath:        modelFile(modelDir, getEnv("PIPELINE_BUNDLE", "rf_pipeline.json")),
		DetectorEnabled:     getEnvAsBool("DETECTOR_ENABLED", true),
		XrayThreshold:       getEnvAsFloat("XRAY_THRESHOLD", 0.5),
		OnnxRuntimeLibrary:  getEnv("ONNXRUNTIME_LIB", ""),
		MaxUploadSize:       getEnvAsInt64("MAX_UPLOAD_MB", 10) << 20,
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ShutdownTimeoutSecs: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
	}
}

// projectRoot is the working directory, or the repository root when the
// binary is started from cmd/server.
func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(wd) == "server" && filepath.Base(filepath.Dir(wd)) == "cmd" {
		return filepath.Join(wd, "..", "..")
	}
	return wd
}

func modelFile(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
