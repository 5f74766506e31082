// Package calibrate turns raw model outputs into bounded confidence scores.
package calibrate

import (
	"fmt"
	"math"

	"agro-advisor/internal/crop"
)

// YieldParams holds the band adjustments applied to the yield confidence.
type YieldParams struct {
	Base float64

	InBand float64 // added for every factor inside its band

	TemperaturePenalty float64
	RainfallPenalty    float64
	SoilPenalty        float64

	Min, Max float64
}

// DefaultYieldParams returns the standard yield calibration.
func DefaultYieldParams() YieldParams {
	return YieldParams{
		Base:               0.7,
		InBand:             0.1,
		TemperaturePenalty: 0.15,
		RainfallPenalty:    0.1,
		SoilPenalty:        0.1,
		Min:                0.3,
		Max:                0.95,
	}
}

// Yield scores how far the inputs sit inside the crop's optimal bands,
// using DefaultYieldParams.
func Yield(p *crop.Profile, soil, rain, temp float64) float64 {
	return DefaultYieldParams().Yield(p, soil, rain, temp)
}

// Yield applies the adjustments and clamps the result to [Min, Max],
// rounded to three decimals.
func (yp YieldParams) Yield(p *crop.Profile, soil, rain, temp float64) float64 {
	c := yp.Base
	c += yp.adjust(p.Temperature.Contains(temp), yp.TemperaturePenalty)
	c += yp.adjust(p.Rainfall.Contains(rain), yp.RainfallPenalty)
	c += yp.adjust(p.Soil.Contains(soil), yp.SoilPenalty)
	c = math.Max(yp.Min, math.Min(yp.Max, c))
	return math.Round(c*1000) / 1000
}

func (yp YieldParams) adjust(in bool, penalty float64) float64 {
	if in {
		return yp.InBand
	}
	return -penalty
}

// Diagnosis clamps a classifier confidence to [0, 1].
func Diagnosis(raw float64) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("classifier confidence %v is not finite", raw)
	}
	return math.Max(0, math.Min(1, raw)), nil
}
