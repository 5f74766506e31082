package engine

import (
	"fmt"
	"math"

	"agro-advisor/internal/yield"
)

// Documented input bounds for a forecast request.
const (
	MinSoilQuality = 1.0
	MaxSoilQuality = 10.0
	MinRainfall    = 0.0
	MaxRainfall    = 500.0
	MinTemperature = -10.0
	MaxTemperature = 50.0
	MaxArea        = 10000.0
)

// Request is one yield forecast request.
type Request struct {
	Crop string `json:"crop_type"`
	yield.Input
}

// Validate checks the documented bounds. ForecastYield does not call it;
// callers that accept untrusted input should.
func (r Request) Validate() error {
	for name, v := range map[string]float64{
		"soil_quality": r.SoilQuality,
		"rainfall":     r.Rainfall,
		"temperature":  r.Temperature,
		"area":         r.Area,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a number", ErrInvalidRequest, name)
		}
	}
	if r.SoilQuality < MinSoilQuality || r.SoilQuality > MaxSoilQuality {
		return fmt.Errorf("%w: soil_quality %g outside [%g, %g]", ErrInvalidRequest, r.SoilQuality, MinSoilQuality, MaxSoilQuality)
	}
	if r.Rainfall < MinRainfall || r.Rainfall > MaxRainfall {
		return fmt.Errorf("%w: rainfall %g outside [%g, %g]", ErrInvalidRequest, r.Rainfall, MinRainfall, MaxRainfall)
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %g outside [%g, %g]", ErrInvalidRequest, r.Temperature, MinTemperature, MaxTemperature)
	}
	if r.Area <= 0 || r.Area > MaxArea {
		return fmt.Errorf("%w: area %g outside (0, %g]", ErrInvalidRequest, r.Area, MaxArea)
	}
	return nil
}
