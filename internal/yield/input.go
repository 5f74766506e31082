// Package yield trains and serves the per-crop yield regressors.
package yield

import (
	"fmt"
	"math"
)

// NumFeatures is the input dimension of every yield model.
const NumFeatures = 5

// FeatureNames lists the model inputs in Vector order.
var FeatureNames = [NumFeatures]string{"soil_quality", "rainfall", "temperature", "area", "fertilizer"}

// Input holds the structured field parameters of one forecast.
type Input struct {
	SoilQuality float64 `json:"soil_quality"` // 1-10
	Rainfall    float64 `json:"rainfall"`     // mm
	Temperature float64 `json:"temperature"`  // °C
	Area        float64 `json:"area"`         // ha
	Fertilizer  bool    `json:"fertilizer_used"`
}

// Vector returns the model input in FeatureNames order.
func (in Input) Vector() []float64 {
	fert := 0.0
	if in.Fertilizer {
		fert = 1
	}
	return []float64{in.SoilQuality, in.Rainfall, in.Temperature, in.Area, fert}
}

func checkVector(x []float64) error {
	if len(x) != NumFeatures {
		return fmt.Errorf("input has %d features, want %d", len(x), NumFeatures)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("input %s is not finite", FeatureNames[i])
		}
	}
	return nil
}
