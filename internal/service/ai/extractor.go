package ai

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"fractureapi/internal/logger"
	"fractureapi/internal/model"

	"gocv.io/x/gocv"
)

// FeatureExtractor runs the fine-tuned classification network but reads the
// activation of an intermediate layer instead of its class output.
type FeatureExtractor struct {
	net       gocv.Net
	modelPath string
	layer     string
	logger    *logger.Logger
	mu        sync.Mutex
}

// NewFeatureExtractor loads the network and binds it to layer.
func NewFeatureExtractor(modelPath, layer string, logger *logger.Logger) (*FeatureExtractor, error) {
	e := &FeatureExtractor{
		modelPath: modelPath,
		layer:     layer,
		logger:    logger,
	}

	if err := e.initializeNet(); err != nil {
		return nil, err
	}
	return e, nil
}

// initializeNet loads the DNN network, sets backend/target preferences and
// checks that the feature layer exists.
func (e *FeatureExtractor) initializeNet() error {
	if _, err := os.Stat(e.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", e.modelPath)
	}

	net := gocv.ReadNet(e.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", e.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	names := net.GetLayerNames()
	resolved, ok := resolveLayer(names, e.layer)
	if !ok {
		net.Close()
		e.logger.Warning("Layer %q not in %s, available layers: %s", e.layer, e.modelPath, strings.Join(names, ", "))
		return fmt.Errorf("layer %q not found in network %s", e.layer, e.modelPath)
	}
	if resolved != e.layer {
		e.logger.Info("Layer %q resolved to %q", e.layer, resolved)
		e.layer = resolved
	}

	e.net = net
	e.logger.Info("Feature network initialized, reading layer %s", e.layer)
	return nil
}

// resolveLayer finds layer among names. Converted models name layers by
// scoped node output (model/global_average_pooling2d/Mean), so a name with
// layer as one of its path segments also matches. When several do, the last
// one is the scope's output.
func resolveLayer(names []string, layer string) (string, bool) {
	match := ""
	for _, name := range names {
		if name == layer {
			return name, true
		}
		for _, segment := range strings.Split(name, "/") {
			if segment == layer {
				match = name
				break
			}
		}
	}
	return match, match != ""
}

// Extract returns the flattened layer activation for one preprocessed image.
func (e *FeatureExtractor) Extract(input model.Tensor) ([]float32, error) {
	if err := input.CheckShape(model.ImageShape()); err != nil {
		return nil, err
	}

	sizes := make([]int, len(input.Shape))
	for i, d := range input.Shape {
		sizes[i] = int(d)
	}
	blob, err := gocv.NewMatWithSizesFromBytes(sizes, gocv.MatTypeCV32F, float32Bytes(input.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %v", err)
	}
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.net.SetInput(blob, "")
	output := e.net.Forward(e.layer)
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("layer %s produced no output", e.layer)
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s output: %v", e.layer, err)
	}

	embedding := make([]float32, len(values))
	copy(embedding, values)
	return embedding, nil
}

// Close releases the network.
func (e *FeatureExtractor) Close() error {
	return e.net.Close()
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}
