package service

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"fractureapi/internal/dto"
	"fractureapi/internal/logger"
	"fractureapi/internal/model"
)

// ========================================
// Fakes
// ========================================

type fakePreprocessor struct {
	detectorCalls int
	fractureCalls int
	err           error
}

func (f *fakePreprocessor) PreprocessDetector(raw []byte) (model.Tensor, error) {
	f.detectorCalls++
	if f.err != nil {
		return model.Tensor{}, f.err
	}
	return model.Tensor{Shape: model.ImageShape()}, nil
}

func (f *fakePreprocessor) PreprocessFracture(raw []byte) (model.Tensor, error) {
	f.fractureCalls++
	if f.err != nil {
		return model.Tensor{}, f.err
	}
	return model.Tensor{Shape: model.ImageShape()}, nil
}

type fakeDetector struct {
	probability float64
	err         error
	calls       int
}

func (f *fakeDetector) Probability(model.Tensor) (float64, error) {
	f.calls++
	return f.probability, f.err
}

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) Extract(model.Tensor) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 2048), nil
}

type fakeClassifier struct {
	class      int
	confidence float64
	err        error
	calls      int
}

func (f *fakeClassifier) Classify([]float32) (int, float64, error) {
	f.calls++
	return f.class, f.confidence, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.PredictionEvent
}

func (r *recordingPublisher) Publish(e dto.PredictionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixture struct {
	pre        *fakePreprocessor
	detector   *fakeDetector
	extractor  *fakeExtractor
	classifier *fakeClassifier
	events     *recordingPublisher
}

func newFixture() *fixture {
	return &fixture{
		pre:        &fakePreprocessor{},
		detector:   &fakeDetector{probability: 0.9},
		extractor:  &fakeExtractor{},
		classifier: &fakeClassifier{class: 1, confidence: 0.8},
		events:     &recordingPublisher{},
	}
}

func (f *fixture) manager(withDetector bool) *Manager {
	stages := Stages{
		Preprocessor: f.pre,
		Extractor:    f.extractor,
		Classifier:   f.classifier,
	}
	if withDetector {
		stages.Detector = f.detector
	}
	return NewManager(stages, Readiness{Ready: true}, 0.5, f.events, logger.Discard())
}

func upload() model.Image {
	return model.Image{RequestID: "req-1", Filename: "wrist.png", Data: []byte("pixels")}
}

// ========================================
// Gate tests
// ========================================

func TestPredict_BelowThresholdShortCircuits(t *testing.T) {
	f := newFixture()
	f.detector.probability = 0.49
	m := f.manager(true)

	p, err := m.Predict(upload())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if p.Status != model.StatusNotXray || p.Label != model.LabelNotXray {
		t.Errorf("Expected not_xray result, got %+v", p)
	}
	if p.Confidence != 0.49 {
		t.Errorf("Expected detector probability as confidence, got %v", p.Confidence)
	}
	if f.pre.fractureCalls != 0 || f.extractor.calls != 0 || f.classifier.calls != 0 {
		t.Errorf("Fracture path should be skipped, got preprocess=%d extract=%d classify=%d",
			f.pre.fractureCalls, f.extractor.calls, f.classifier.calls)
	}
}

func TestPredict_AtThresholdProceeds(t *testing.T) {
	f := newFixture()
	f.detector.probability = 0.5
	m := f.manager(true)

	p, err := m.Predict(upload())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if p.Status != model.StatusSuccess || p.Label != model.LabelFracture {
		t.Errorf("Expected fracture success, got %+v", p)
	}
	if f.pre.detectorCalls != 1 || f.pre.fractureCalls != 1 || f.extractor.calls != 1 || f.classifier.calls != 1 {
		t.Errorf("Expected every stage once, got detector=%d fracture=%d extract=%d classify=%d",
			f.pre.detectorCalls, f.pre.fractureCalls, f.extractor.calls, f.classifier.calls)
	}
}

func TestPredict_WithoutDetectorSkipsGate(t *testing.T) {
	f := newFixture()
	f.detector.probability = 0
	m := f.manager(false)

	p, err := m.Predict(upload())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if p.Status != model.StatusSuccess {
		t.Errorf("Expected success, got %+v", p)
	}
	if f.pre.detectorCalls != 0 || f.detector.calls != 0 {
		t.Error("Detector should not run when the gate is disabled")
	}
}

// ========================================
// Label and confidence tests
// ========================================

func TestPredict_LabelMapping(t *testing.T) {
	tests := []struct {
		class int
		label string
	}{
		{0, model.LabelNormal},
		{1, model.LabelFracture},
		{2, model.LabelUnknown},
		{-1, model.LabelUnknown},
	}

	for _, tt := range tests {
		f := newFixture()
		f.classifier.class = tt.class
		p, err := f.manager(true).Predict(upload())
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if p.Label != tt.label {
			t.Errorf("class %d: expected %s, got %s", tt.class, tt.label, p.Label)
		}
	}
}

func TestPredict_RejectsConfidenceOutsideUnitRange(t *testing.T) {
	f := newFixture()
	f.classifier.confidence = 1.2

	if _, err := f.manager(true).Predict(upload()); err == nil {
		t.Error("Expected an error for confidence 1.2")
	}
}

// ========================================
// Readiness and error tests
// ========================================

func TestPredict_NotReadyDoesNothing(t *testing.T) {
	f := newFixture()
	m := NewManager(Stages{Preprocessor: f.pre, Detector: f.detector, Extractor: f.extractor, Classifier: f.classifier},
		Readiness{Ready: false, Artifacts: map[string]string{"pipeline": "missing"}}, 0.5, f.events, logger.Discard())

	_, err := m.Predict(upload())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady, got %v", err)
	}
	if err.Error() != "Model or pipeline not loaded." {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if f.pre.detectorCalls != 0 || f.pre.fractureCalls != 0 {
		t.Error("No preprocessing should happen while not ready")
	}
	if len(f.events.events) != 0 {
		t.Error("No event should be published while not ready")
	}
}

func TestNewManager_MissingStageIsNotReady(t *testing.T) {
	f := newFixture()
	m := NewManager(Stages{Preprocessor: f.pre, Extractor: f.extractor}, Readiness{Ready: true}, 0.5, nil, logger.Discard())

	if m.Ready() {
		t.Error("Manager without a classifier must not be ready")
	}
}

func TestPredict_InvalidImageIsWrapped(t *testing.T) {
	f := newFixture()
	f.pre.err = model.ErrInvalidImage

	_, err := f.manager(true).Predict(upload())
	if !errors.Is(err, model.ErrInvalidImage) {
		t.Fatalf("Expected ErrInvalidImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid image") {
		t.Errorf("Message should mention invalid image, got %q", err.Error())
	}
}

func TestPredict_StageErrorsArePublished(t *testing.T) {
	f := newFixture()
	f.extractor.err = errors.New("layer produced no output")

	_, err := f.manager(true).Predict(upload())
	if err == nil || !strings.Contains(err.Error(), "feature extraction") {
		t.Fatalf("Expected feature extraction error, got %v", err)
	}
	if f.classifier.calls != 0 {
		t.Error("Classifier should not run after an extraction error")
	}

	if len(f.events.events) != 1 {
		t.Fatalf("Expected one event, got %d", len(f.events.events))
	}
	event := f.events.events[0]
	if event.Status != "error" || !strings.Contains(event.Message, "layer produced no output") {
		t.Errorf("Unexpected event %+v", event)
	}
	if event.RequestID != "req-1" || event.Filename != "wrist.png" {
		t.Errorf("Event lost request details: %+v", event)
	}
}

func TestPredict_DetectorErrorStopsPipeline(t *testing.T) {
	f := newFixture()
	f.detector.err = errors.New("session failed")

	_, err := f.manager(true).Predict(upload())
	if err == nil || !strings.Contains(err.Error(), "x-ray detector") {
		t.Fatalf("Expected detector error, got %v", err)
	}
	if f.pre.fractureCalls != 0 {
		t.Error("Fracture path should not run after a detector error")
	}
}

func TestReadiness_ReturnsCopy(t *testing.T) {
	f := newFixture()
	m := NewManager(Stages{Preprocessor: f.pre, Extractor: f.extractor, Classifier: f.classifier},
		Readiness{Ready: true, Artifacts: map[string]string{"pipeline": "loaded"}}, 0.5, nil, logger.Discard())

	r := m.Readiness()
	r.Artifacts["pipeline"] = "changed"

	if m.Readiness().Artifacts["pipeline"] != "loaded" {
		t.Error("Readiness should not expose internal state")
	}
}
