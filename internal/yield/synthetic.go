package yield

import (
	"math"
	"math/rand"

	"agro-advisor/internal/crop"
)

// Range is a uniform sampling interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// SyntheticConfig describes the generated training data.
type SyntheticConfig struct {
	Samples     int     `yaml:"samples"`
	Soil        Range   `yaml:"soil"`
	Rainfall    Range   `yaml:"rainfall"`
	Temperature Range   `yaml:"temperature"`
	Area        Range   `yaml:"area"`
	NoiseStd    float64 `yaml:"noise_std"`
}

// DefaultSyntheticConfig returns the standard generator settings.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Samples:     1000,
		Soil:        Range{Min: 3, Max: 10},
		Rainfall:    Range{Min: 30, Max: 200},
		Temperature: Range{Min: 10, Max: 30},
		Area:        Range{Min: 0.5, Max: 5},
		NoiseStd:    0.5,
	}
}

// Effect coefficients shared by every crop.
const (
	soilScale      = 0.3
	rainScale      = 0.02
	tempInBand     = 0.1
	tempOutOfBand  = 0.05
	fertilizerGain = 0.5
)

// ExpectedYield is the noise-free synthetic target for one input.
func ExpectedYield(p *crop.Profile, in Input) float64 {
	y := p.BaseYield
	y += in.SoilQuality * p.SoilImpact * soilScale
	y += in.Rainfall * p.RainImpact * rainScale
	if p.Temperature.Contains(in.Temperature) {
		y += in.Temperature * tempInBand
	} else {
		y += in.Temperature * tempOutOfBand
	}
	if in.Fertilizer {
		y += fertilizerGain
	}
	return y
}

// Generate draws a training set for p. Targets are floored at zero.
func Generate(p *crop.Profile, cfg SyntheticConfig, rng *rand.Rand) (X [][]float64, y []float64) {
	X = make([][]float64, cfg.Samples)
	y = make([]float64, cfg.Samples)
	for i := 0; i < cfg.Samples; i++ {
		in := Input{
			SoilQuality: cfg.Soil.sample(rng),
			Rainfall:    cfg.Rainfall.sample(rng),
			Temperature: cfg.Temperature.sample(rng),
			Area:        cfg.Area.sample(rng),
			Fertilizer:  rng.Intn(2) == 1,
		}
		X[i] = in.Vector()
		y[i] = math.Max(0, ExpectedYield(p, in)+rng.NormFloat64()*cfg.NoiseStd)
	}
	return X, y
}
