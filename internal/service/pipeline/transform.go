package pipeline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type scalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// StandardScaler applies (x - mean) / scale per feature.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

func newStandardScaler(p scalerParams) (*StandardScaler, error) {
	if len(p.Mean) == 0 {
		return nil, errors.New("empty mean")
	}
	if len(p.Scale) != len(p.Mean) {
		return nil, fmt.Errorf("mean has %d entries, scale has %d", len(p.Mean), len(p.Scale))
	}

	scale := make([]float64, len(p.Scale))
	for i, s := range p.Scale {
		// Constant features are stored with a zero scale; they pass through unscaled.
		if s == 0 {
			s = 1
		}
		scale[i] = s
	}
	return &StandardScaler{mean: p.Mean, scale: scale}, nil
}

func (s *StandardScaler) Features() int {
	return len(s.mean)
}

// Transform returns a new slice, x is left untouched.
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.mean)
	floats.Div(out, s.scale)
	return out
}

type pcaParams struct {
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"`
	ExplainedVariance []float64   `json:"explained_variance"`
	Whiten            bool        `json:"whiten"`
}

// PCA projects centred vectors onto the fitted principal axes.
type PCA struct {
	mean       []float64
	components *mat.Dense // components x features
	whitenBy   []float64
}

func newPCA(p pcaParams) (*PCA, error) {
	if len(p.Components) == 0 {
		return nil, errors.New("no components")
	}
	features := len(p.Mean)
	if features == 0 {
		return nil, errors.New("empty mean")
	}

	data := make([]float64, 0, len(p.Components)*features)
	for i, row := range p.Components {
		if len(row) != features {
			return nil, fmt.Errorf("component %d has %d entries, expected %d", i, len(row), features)
		}
		data = append(data, row...)
	}

	pca := &PCA{
		mean:       p.Mean,
		components: mat.NewDense(len(p.Components), features, data),
	}

	if p.Whiten {
		if len(p.ExplainedVariance) != len(p.Components) {
			return nil, fmt.Errorf("whiten needs %d explained variances, got %d", len(p.Components), len(p.ExplainedVariance))
		}
		pca.whitenBy = make([]float64, len(p.ExplainedVariance))
		for i, v := range p.ExplainedVariance {
			if v <= 0 {
				return nil, fmt.Errorf("explained variance %d is not positive", i)
			}
			pca.whitenBy[i] = math.Sqrt(v)
		}
	}
	return pca, nil
}

func (p *PCA) Features() int {
	_, c := p.components.Dims()
	return c
}

func (p *PCA) Components() int {
	r, _ := p.components.Dims()
	return r
}

func (p *PCA) Transform(x []float64) []float64 {
	centred := make([]float64, len(x))
	floats.SubTo(centred, x, p.mean)

	var reduced mat.VecDense
	reduced.MulVec(p.components, mat.NewVecDense(len(centred), centred))

	out := make([]float64, reduced.Len())
	for i := range out {
		out[i] = reduced.AtVec(i)
	}
	if p.whitenBy != nil {
		floats.Div(out, p.whitenBy)
	}
	return out
}
