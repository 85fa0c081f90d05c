package pipeline

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// leaf marks a node without children in the exported tree arrays.
const leaf = -1

type treeParams struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forestParams struct {
	Classes   []int        `json:"classes"`
	NFeatures int          `json:"n_features"`
	Trees     []treeParams `json:"trees"`
}

// RandomForest averages the class distributions of its decision trees.
type RandomForest struct {
	Classes   []int
	nFeatures int
	trees     []tree
}

type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	proba       [][]float64 // normalised per node
}

func newRandomForest(p forestParams) (*RandomForest, error) {
	if len(p.Classes) == 0 {
		return nil, errors.New("no classes")
	}
	if p.NFeatures <= 0 {
		return nil, fmt.Errorf("invalid n_features %d", p.NFeatures)
	}
	if len(p.Trees) == 0 {
		return nil, errors.New("no trees")
	}

	forest := &RandomForest{Classes: p.Classes, nFeatures: p.NFeatures}
	for i, tp := range p.Trees {
		t, err := newTree(tp, p.NFeatures, len(p.Classes))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		forest.trees = append(forest.trees, t)
	}
	return forest, nil
}

func newTree(p treeParams, nFeatures, nClasses int) (tree, error) {
	n := len(p.ChildrenLeft)
	if n == 0 {
		return tree{}, errors.New("no nodes")
	}
	if len(p.ChildrenRight) != n || len(p.Feature) != n || len(p.Threshold) != n || len(p.Value) != n {
		return tree{}, errors.New("node arrays differ in length")
	}

	t := tree{
		left:      p.ChildrenLeft,
		right:     p.ChildrenRight,
		feature:   p.Feature,
		threshold: p.Threshold,
		proba:     make([][]float64, n),
	}

	for node := 0; node < n; node++ {
		l, r := p.ChildrenLeft[node], p.ChildrenRight[node]
		if (l == leaf) != (r == leaf) {
			return tree{}, fmt.Errorf("node %d has a single child", node)
		}
		if l != leaf {
			// Nodes are stored in depth-first order, so children always follow their parent.
			if l <= node || l >= n || r <= node || r >= n {
				return tree{}, fmt.Errorf("node %d has out of order children %d/%d", node, l, r)
			}
			if f := p.Feature[node]; f < 0 || f >= nFeatures {
				return tree{}, fmt.Errorf("node %d splits on feature %d", node, f)
			}
		}

		if len(p.Value[node]) != nClasses {
			return tree{}, fmt.Errorf("node %d has %d class values, expected %d", node, len(p.Value[node]), nClasses)
		}
		dist := make([]float64, nClasses)
		copy(dist, p.Value[node])
		if total := floats.Sum(dist); total > 0 {
			floats.Scale(1/total, dist)
		}
		t.proba[node] = dist
	}
	return t, nil
}

func (t tree) leafFor(x []float64) int {
	node := 0
	for t.left[node] != leaf {
		// Split thresholds were fitted on float32 inputs.
		if float64(float32(x[t.feature[node]])) <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return node
}

func (f *RandomForest) Features() int {
	return f.nFeatures
}

// PredictProba returns the mean class distribution over all trees.
func (f *RandomForest) PredictProba(x []float64) []float64 {
	proba := make([]float64, len(f.Classes))
	for _, t := range f.trees {
		floats.Add(proba, t.proba[t.leafFor(x)])
	}
	floats.Scale(1/float64(len(f.trees)), proba)
	return proba
}

// Predict returns the class with the highest mean probability.
func (f *RandomForest) Predict(x []float64) int {
	return f.Classes[floats.MaxIdx(f.PredictProba(x))]
}
