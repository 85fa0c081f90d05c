// Package pipeline evaluates the fitted scaler -> PCA -> random forest
// bundle that classifies image embeddings.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// Bundle holds the three fitted stages loaded from a pipeline file.
type Bundle struct {
	Scaler *StandardScaler
	PCA    *PCA
	Forest *RandomForest
}

type bundleFile struct {
	Scaler *scalerParams `json:"scaler"`
	PCA    *pcaParams    `json:"pca"`
	Forest *forestParams `json:"rf"`
}

// Load reads and validates a pipeline bundle from path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline bundle: %w", err)
	}
	return Parse(data)
}

// Parse decodes a pipeline bundle document.
func Parse(data []byte) (*Bundle, error) {
	var f bundleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline bundle: %w", err)
	}

	switch {
	case f.Scaler == nil:
		return nil, errors.New(`pipeline bundle has no "scaler"`)
	case f.PCA == nil:
		return nil, errors.New(`pipeline bundle has no "pca"`)
	case f.Forest == nil:
		return nil, errors.New(`pipeline bundle has no "rf"`)
	}

	scaler, err := newStandardScaler(*f.Scaler)
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	pca, err := newPCA(*f.PCA)
	if err != nil {
		return nil, fmt.Errorf("pca: %w", err)
	}
	forest, err := newRandomForest(*f.Forest)
	if err != nil {
		return nil, fmt.Errorf("rf: %w", err)
	}

	if scaler.Features() != pca.Features() {
		return nil, fmt.Errorf("scaler expects %d features but pca expects %d", scaler.Features(), pca.Features())
	}
	if pca.Components() != forest.Features() {
		return nil, fmt.Errorf("pca yields %d components but rf expects %d features", pca.Components(), forest.Features())
	}

	return &Bundle{Scaler: scaler, PCA: pca, Forest: forest}, nil
}

// Features is the embedding length the bundle accepts.
func (b *Bundle) Features() int {
	return b.Scaler.Features()
}

// Transform scales and reduces one embedding.
func (b *Bundle) Transform(embedding []float32) ([]float64, error) {
	if len(embedding) != b.Features() {
		return nil, fmt.Errorf("feature vector has %d elements, pipeline expects %d", len(embedding), b.Features())
	}

	x := make([]float64, len(embedding))
	for i, v := range embedding {
		x[i] = float64(v)
	}
	if i, ok := firstNonFinite(x); ok {
		return nil, fmt.Errorf("feature vector contains non-finite value at %d", i)
	}

	reduced := b.PCA.Transform(b.Scaler.Transform(x))
	if i, ok := firstNonFinite(reduced); ok {
		return nil, fmt.Errorf("reduced feature vector contains non-finite value at %d", i)
	}
	return reduced, nil
}

func firstNonFinite(x []float64) (int, bool) {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, true
		}
	}
	return 0, false
}

// Classify runs the whole bundle on one embedding and returns the predicted
// class value together with its probability.
func (b *Bundle) Classify(embedding []float32) (int, float64, error) {
	reduced, err := b.Transform(embedding)
	if err != nil {
		return 0, 0, err
	}

	proba := b.Forest.PredictProba(reduced)
	best := floats.MaxIdx(proba)
	return b.Forest.Classes[best], proba[best], nil
}
