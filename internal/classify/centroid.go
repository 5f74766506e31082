package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"

	"agro-advisor/internal/features"
)

// ChannelStats is the learned distribution of one label.
type ChannelStats struct {
	Mean  []float64 `json:"mean"`
	Std   []float64 `json:"std"`
	Count int       `json:"count"`
}

// CentroidScorer scores vectors by normalized distance to per-label
// feature distributions learned from labeled samples.
type CentroidScorer struct {
	Stats   map[Label]ChannelStats `json:"stats"`
	Trained bool                   `json:"trained"`
}

// stdFloor keeps near-constant channels from dominating the distance.
// Colour and texture channels use absolute units; edge density is 0-1.
var stdFloor = [features.Len]float64{1, 1, 1, 1, 1, 1, 1, 0.01}

// Train computes per-label channel statistics. Labels without samples are
// left out and never predicted.
func (c *CentroidScorer) Train(ts *TrainingSet) error {
	groups := ts.ByLabel()

	stats := make(map[Label]ChannelStats)
	for _, label := range Labels() {
		vecs := groups[label]
		if len(vecs) == 0 {
			continue
		}

		cs := ChannelStats{
			Mean:  make([]float64, features.Len),
			Std:   make([]float64, features.Len),
			Count: len(vecs),
		}
		column := make([]float64, len(vecs))
		for ch := 0; ch < features.Len; ch++ {
			for i, v := range vecs {
				column[i] = v.Slice()[ch]
			}
			mean, variance := stat.PopMeanVariance(column, nil)
			cs.Mean[ch] = mean
			cs.Std[ch] = math.Sqrt(variance)
		}
		stats[label] = cs
	}

	if len(stats) == 0 {
		return fmt.Errorf("training set has no samples")
	}
	c.Stats = stats
	c.Trained = true
	return nil
}

// Score implements Scorer. The confidence is the inverse-distance weight of
// the nearest label relative to all trained labels.
func (c *CentroidScorer) Score(fv features.Vector) (Prediction, error) {
	if err := checkVector(fv); err != nil {
		return Prediction{}, err
	}
	if !c.Trained || len(c.Stats) == 0 {
		return Prediction{}, fmt.Errorf("centroid scorer is not trained")
	}

	x := fv.Slice()
	var (
		best       Label
		bestWeight float64
		total      float64
	)
	for _, label := range Labels() {
		cs, ok := c.Stats[label]
		if !ok {
			continue
		}
		if len(cs.Mean) != features.Len || len(cs.Std) != features.Len {
			return Prediction{}, fmt.Errorf("label %s: model has %d channels, want %d", label, len(cs.Mean), features.Len)
		}
		w := 1.0 / (distance(x, cs) + 0.001)
		total += w
		if w > bestWeight {
			best, bestWeight = label, w
		}
	}

	return Prediction{Label: best, Confidence: clamp01(bestWeight / total)}, nil
}

// distance is a diagonal Mahalanobis-like distance.
func distance(x []float64, cs ChannelStats) float64 {
	sum := 0.0
	for i := range x {
		sum += sqDiff(x[i], cs.Mean[i], cs.Std[i]+stdFloor[i])
	}
	return math.Sqrt(sum)
}

// sqDiff computes (a-b)^2 / s^2 with safeguards.
func sqDiff(a, b, s float64) float64 {
	if s < 0.001 {
		s = 0.001
	}
	d := (a - b) / s
	return d * d
}

// Save writes the scorer to a JSON file.
func (c *CentroidScorer) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal centroid model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCentroidScorer reads a scorer from a JSON file.
func LoadCentroidScorer(path string) (*CentroidScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c CentroidScorer
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal centroid model: %w", err)
	}
	for label := range c.Stats {
		if !label.Valid() {
			return nil, fmt.Errorf("centroid model has unknown label %q", label)
		}
	}
	if !c.Trained || len(c.Stats) == 0 {
		return nil, fmt.Errorf("centroid model %s is not trained", path)
	}
	return &c, nil
}
