package ai

import (
	"fmt"

	"fractureapi/internal/config"
	"fractureapi/internal/logger"
	"fractureapi/internal/service/pipeline"

	ort "github.com/yalue/onnxruntime_go"
)

// Artifact names used in readiness reports.
const (
	ArtifactDetector = "detector"
	ArtifactFeatures = "feature_extractor"
	ArtifactPipeline = "pipeline"
)

// Artifacts are the models loaded at start. A nil field means the artifact
// is disabled or failed to load; Errors says which.
type Artifacts struct {
	Detector  *XrayDetector
	Extractor *FeatureExtractor
	Pipeline  *pipeline.Bundle
	Errors    map[string]error

	detectorEnabled bool
	runtimeStarted  bool
}

// LoadArtifacts loads every configured artifact independently. Failures are
// logged and recorded, never fatal: the caller decides what an incomplete
// set means.
func LoadArtifacts(cfg *config.Config, logger *logger.Logger) *Artifacts {
	a := &Artifacts{
		Errors:          make(map[string]error),
		detectorEnabled: cfg.DetectorEnabled,
	}

	if cfg.DetectorEnabled {
		logger.Info("Loading X-ray detector from %s", cfg.DetectorModelPath)
		if err := a.startRuntime(cfg.OnnxRuntimeLibrary); err != nil {
			a.fail(logger, ArtifactDetector, err)
		} else if detector, err := NewXrayDetector(cfg.DetectorModelPath, logger); err != nil {
			a.fail(logger, ArtifactDetector, err)
		} else {
			a.Detector = detector
		}
	}

	logger.Info("Loading feature network from %s", cfg.FeatureModelPath)
	if extractor, err := NewFeatureExtractor(cfg.FeatureModelPath, cfg.FeatureLayer, logger); err != nil {
		a.fail(logger, ArtifactFeatures, err)
	} else {
		a.Extractor = extractor
	}

	logger.Info("Loading pipeline bundle from %s", cfg.PipelinePath)
	if bundle, err := pipeline.Load(cfg.PipelinePath); err != nil {
		a.fail(logger, ArtifactPipeline, err)
	} else {
		a.Pipeline = bundle
		logger.Info("Pipeline bundle loaded: %d features, %d components, %d classes",
			bundle.Features(), bundle.PCA.Components(), len(bundle.Forest.Classes))
	}

	return a
}

func (a *Artifacts) startRuntime(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	a.runtimeStarted = true
	return nil
}

func (a *Artifacts) fail(logger *logger.Logger, name string, err error) {
	a.Errors[name] = err
	logger.Warning("Could not load %s: %v", name, err)
}

// Ready reports whether every enabled artifact loaded.
func (a *Artifacts) Ready() bool {
	return len(a.Errors) == 0
}

// Status maps each enabled artifact to "loaded" or its load error.
func (a *Artifacts) Status() map[string]string {
	status := map[string]string{
		ArtifactFeatures: "loaded",
		ArtifactPipeline: "loaded",
	}
	if a.detectorEnabled {
		status[ArtifactDetector] = "loaded"
	}
	for name, err := range a.Errors {
		status[name] = err.Error()
	}
	return status
}

// Close releases native resources.
func (a *Artifacts) Close() {
	if a.Detector != nil {
		a.Detector.Close()
	}
	if a.Extractor != nil {
		a.Extractor.Close()
	}
	if a.runtimeStarted {
		ort.DestroyEnvironment()
	}
}
