package ai

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"fractureapi/internal/logger"
	"fractureapi/internal/model"

	ort "github.com/yalue/onnxruntime_go"
)

// XrayDetector scores how likely an image is to be a radiograph.
type XrayDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	logger       *logger.Logger
	mu           sync.Mutex
}

// NewXrayDetector opens an ONNX session for the detector network. The
// network must take one (N,224,224,3) float input and produce the X-ray
// probability as the last element of its first output.
func NewXrayDetector(modelPath string, logger *logger.Logger) (*XrayDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect detector model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("detector model has no inputs or outputs")
	}

	outputShape := fixedShape(outputs[0].Dimensions)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(model.ImageShape()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("X-ray detector initialized (%s -> %s %v)", inputs[0].Name, outputs[0].Name, outputShape)

	return &XrayDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		logger:       logger,
	}, nil
}

// fixedShape pins dynamic dimensions (batch) to 1.
func fixedShape(dims ort.Shape) ort.Shape {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return ort.NewShape(shape...)
}

// Probability runs the detector on one preprocessed image.
func (d *XrayDetector) Probability(input model.Tensor) (float64, error) {
	if err := input.CheckShape(model.ImageShape()); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), input.Data)

	if err := d.session.Run(); err != nil {
		return 0, fmt.Errorf("detector inference failed: %w", err)
	}

	out := d.outputTensor.GetData()
	if len(out) == 0 {
		return 0, errors.New("detector produced no output")
	}

	p := float64(out[len(out)-1])
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("detector output %v is not a probability", p)
	}
	return p, nil
}

// Close releases the session and its tensors.
func (d *XrayDetector) Close() {
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
	if d.session != nil {
		d.session.Destroy()
	}
}
