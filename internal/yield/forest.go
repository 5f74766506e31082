package yield

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ForestParams controls bagging.
type ForestParams struct {
	Trees    int `yaml:"trees"`
	MaxDepth int `yaml:"max_depth"`
	MinLeaf  int `yaml:"min_leaf"`
}

// DefaultForestParams returns 100 trees of depth at most 10.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 10, MinLeaf: 1}
}

// Forest is a bootstrap-aggregated ensemble of regression trees.
type Forest struct {
	trees      []*Tree
	importance []float64
}

// FitForest trains a forest on (X, y). Each tree sees a bootstrap resample
// of the rows drawn from rng.
func FitForest(ctx context.Context, X [][]float64, y []float64, p ForestParams, rng *rand.Rand) (*Forest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("training data has %d rows and %d targets", len(X), len(y))
	}
	if p.Trees <= 0 {
		return nil, fmt.Errorf("forest needs at least one tree, got %d", p.Trees)
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	f := &Forest{importance: make([]float64, width)}
	n := len(X)
	idx := make([]int, n)
	for t := 0; t < p.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, fitTree(X, y, idx, p.MaxDepth, p.MinLeaf, f.importance))
	}

	if total := floats.Sum(f.importance); total > 0 {
		floats.Scale(1/total, f.importance)
	}
	return f, nil
}

// Predict implements Model as the mean of the tree predictions.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(f.trees) == 0 {
		return 0, ErrNotTrained
	}
	if err := checkVector(x); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.trees)), nil
}

// Size returns the number of trees.
func (f *Forest) Size() int {
	return len(f.trees)
}

// Importance returns the normalized SSE reduction per input feature.
func (f *Forest) Importance() []float64 {
	return append([]float64(nil), f.importance...)
}
