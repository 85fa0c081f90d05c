package service

import (
	"errors"
	"fmt"
	"time"

	"fractureapi/internal/dto"
	"fractureapi/internal/logger"
	"fractureapi/internal/model"
)

// ErrNotReady is returned by Predict while required artifacts are missing.
var ErrNotReady = errors.New("Model or pipeline not loaded.")

type Preprocessor interface {
	PreprocessDetector(raw []byte) (model.Tensor, error)
	PreprocessFracture(raw []byte) (model.Tensor, error)
}

type XrayDetector interface {
	Probability(input model.Tensor) (float64, error)
}

type FeatureExtractor interface {
	Extract(input model.Tensor) ([]float32, error)
}

// Classifier maps an embedding to a class value and its probability.
type Classifier interface {
	Classify(embedding []float32) (int, float64, error)
}

type EventPublisher interface {
	Publish(event dto.PredictionEvent)
}

// Stages are the loaded inference components. Detector may be nil, which
// disables the X-ray gate.
type Stages struct {
	Preprocessor Preprocessor
	Detector     XrayDetector
	Extractor    FeatureExtractor
	Classifier   Classifier
}

// Readiness describes whether Predict can run and why not.
type Readiness struct {
	Ready     bool
	Artifacts map[string]string
}

// Manager is the inference context: built once at start, read-only after.
type Manager struct {
	stages    Stages
	readiness Readiness
	threshold float64
	events    EventPublisher
	logger    *logger.Logger
}

func NewManager(stages Stages, readiness Readiness, threshold float64, events EventPublisher, logger *logger.Logger) *Manager {
	if readiness.Ready && (stages.Preprocessor == nil || stages.Extractor == nil || stages.Classifier == nil) {
		readiness.Ready = false
	}

	if readiness.Ready {
		if stages.Detector != nil {
			logger.Info("Inference ready: X-ray gate at %.2f, fracture classifier", threshold)
		} else {
			logger.Info("Inference ready: fracture classifier only")
		}
	} else {
		logger.Warning("Inference not ready: %v", readiness.Artifacts)
	}

	return &Manager{
		stages:    stages,
		readiness: readiness,
		threshold: threshold,
		events:    events,
		logger:    logger,
	}
}

func (m *Manager) Ready() bool {
	return m.readiness.Ready
}

// Readiness returns a copy of the readiness report.
func (m *Manager) Readiness() Readiness {
	artifacts := make(map[string]string, len(m.readiness.Artifacts))
	for k, v := range m.readiness.Artifacts {
		artifacts[k] = v
	}
	return Readiness{Ready: m.readiness.Ready, Artifacts: artifacts}
}

// Predict classifies one uploaded image and publishes the outcome.
func (m *Manager) Predict(img model.Image) (model.Prediction, error) {
	if !m.readiness.Ready {
		return model.Prediction{}, ErrNotReady
	}

	start := time.Now()
	prediction, err := m.predict(img.Data)
	m.publish(img, prediction, err, time.Since(start))

	if err != nil {
		m.logger.Error("[%s] Prediction for %q failed: %v", img.RequestID, img.Filename, err)
		return model.Prediction{}, err
	}

	m.logger.Info("[%s] %q -> %s %s (%.3f)", img.RequestID, img.Filename, prediction.Status, prediction.Label, prediction.Confidence)
	return prediction, nil
}

func (m *Manager) predict(raw []byte) (model.Prediction, error) {
	if m.stages.Detector != nil {
		input, err := m.stages.Preprocessor.PreprocessDetector(raw)
		if err != nil {
			return model.Prediction{}, fmt.Errorf("preprocess detector input: %w", err)
		}

		p, err := m.stages.Detector.Probability(input)
		if err != nil {
			return model.Prediction{}, fmt.Errorf("x-ray detector: %w", err)
		}

		if p < m.threshold {
			return model.Prediction{Status: model.StatusNotXray, Label: model.LabelNotXray, Confidence: p}, nil
		}
	}

	input, err := m.stages.Preprocessor.PreprocessFracture(raw)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("preprocess fracture input: %w", err)
	}

	embedding, err := m.stages.Extractor.Extract(input)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("feature extraction: %w", err)
	}

	class, confidence, err := m.stages.Classifier.Classify(embedding)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("classifier: %w", err)
	}
	if confidence < 0 || confidence > 1 {
		return model.Prediction{}, fmt.Errorf("classifier confidence %v outside [0,1]", confidence)
	}

	return model.Prediction{
		Status:     model.StatusSuccess,
		Label:      model.LabelForClass(class),
		Confidence: confidence,
	}, nil
}

func (m *Manager) publish(img model.Image, p model.Prediction, err error, took time.Duration) {
	if m.events == nil {
		return
	}

	event := dto.PredictionEvent{
		RequestID:  img.RequestID,
		Filename:   img.Filename,
		Status:     string(p.Status),
		Prediction: p.Label,
		Confidence: p.Confidence,
		Timestamp:  img.ReceivedAt,
		Duration:   took,
	}
	if err != nil {
		event.Status = string(model.StatusError)
		event.Message = err.Error()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	m.events.Publish(event)
}
