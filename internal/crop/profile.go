// Package crop holds the per-crop reference data used by the yield pipeline.
package crop

import "fmt"

// Band is an inclusive optimal range for one growing factor.
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies inside the band, bounds included.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Position returns -1 below the band, 1 above it and 0 inside.
func (b Band) Position(v float64) int {
	switch {
	case v < b.Min:
		return -1
	case v > b.Max:
		return 1
	default:
		return 0
	}
}

// MarshalJSON encodes the band as a [min, max] pair.
func (b Band) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%g,%g]", b.Min, b.Max)), nil
}

func (b Band) validate() error {
	if b.Min > b.Max {
		return fmt.Errorf("band min %g exceeds max %g", b.Min, b.Max)
	}
	return nil
}

// Profile is the static reference data for one crop. Registry hands out
// copies, so changing a returned Profile never affects other requests.
type Profile struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Aliases  []string `yaml:"aliases"`

	// Yield sensitivity coefficients.
	BaseYield  float64 `yaml:"base_yield"`
	SoilImpact float64 `yaml:"soil_impact"`
	RainImpact float64 `yaml:"rain_impact"`

	// Optimal growing bands.
	Temperature Band `yaml:"temperature"`
	Rainfall    Band `yaml:"rainfall"`
	Soil        Band `yaml:"soil"`
}

// OptimalRanges returns the profile bands keyed the way results expose them.
func (p *Profile) OptimalRanges() map[string]Band {
	return map[string]Band{
		"temp": p.Temperature,
		"rain": p.Rainfall,
		"soil": p.Soil,
	}
}

func (p *Profile) clone() *Profile {
	c := *p
	c.Aliases = append([]string(nil), p.Aliases...)
	return &c
}

// Info is the public listing entry for a crop.
type Info struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (p *Profile) validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile without id")
	}
	if p.BaseYield < 0 {
		return fmt.Errorf("crop %s: negative base yield", p.ID)
	}
	for name, b := range map[string]Band{"temperature": p.Temperature, "rainfall": p.Rainfall, "soil": p.Soil} {
		if err := b.validate(); err != nil {
			return fmt.Errorf("crop %s: %s: %w", p.ID, name, err)
		}
	}
	return nil
}
