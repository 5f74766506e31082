package classify

import "agro-advisor/internal/features"

// Thresholds tune the HeuristicScorer. Brightness, contrast and saturation
// are the HSV value mean, value std and saturation mean scaled to 0-1.
type Thresholds struct {
	HealthyBrightness float64 `yaml:"healthy_brightness" json:"healthy_brightness"`
	HealthyContrast   float64 `yaml:"healthy_contrast" json:"healthy_contrast"`
	DarkBrightness    float64 `yaml:"dark_brightness" json:"dark_brightness"`

	// PaleSaturation separates nutrient deficiency (pale) from fungal
	// infection (saturated) on dark images.
	PaleSaturation float64 `yaml:"pale_saturation" json:"pale_saturation"`

	// Evidence scales for the mid-brightness case: a channel at or above
	// its scale counts as full evidence.
	EdgeDensityScale float64 `yaml:"edge_density_scale" json:"edge_density_scale"`
	HueSpreadScale   float64 `yaml:"hue_spread_scale" json:"hue_spread_scale"`
	TextureScale     float64 `yaml:"texture_scale" json:"texture_scale"`
}

// DefaultThresholds returns the standard decision thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyBrightness: 0.6,
		HealthyContrast:   0.15,
		DarkBrightness:    0.4,
		PaleSaturation:    0.35,
		EdgeDensityScale:  0.15,
		HueSpreadScale:    25,
		TextureScale:      800,
	}
}

// Confidence sub-ranges per decision branch.
const (
	healthyConfMin, healthyConfMax = 0.70, 0.95
	darkConfMin, darkConfMax       = 0.60, 0.85
	mixedConfMin, mixedConfMax     = 0.50, 0.80
)

// HeuristicScorer is a deterministic rule-based stand-in for a trained
// model. Confidence grows with the distance from the decision boundary.
type HeuristicScorer struct {
	t Thresholds
}

// NewHeuristicScorer creates a scorer with the given thresholds.
func NewHeuristicScorer(t Thresholds) *HeuristicScorer {
	return &HeuristicScorer{t: t}
}

// Score implements Scorer.
func (h *HeuristicScorer) Score(fv features.Vector) (Prediction, error) {
	if err := checkVector(fv); err != nil {
		return Prediction{}, err
	}

	t := h.t
	brightness := clamp01(fv.ValMean / 255)
	contrast := clamp01(fv.ValStd / 255)
	saturation := clamp01(fv.SatMean / 255)

	switch {
	case brightness > t.HealthyBrightness && contrast > t.HealthyContrast:
		margin := 0.5*ratio(brightness-t.HealthyBrightness, 1-t.HealthyBrightness) +
			0.5*ratio(contrast-t.HealthyContrast, 0.5-t.HealthyContrast)
		return Prediction{Label: Healthy, Confidence: lerp(healthyConfMin, healthyConfMax, margin)}, nil

	case brightness < t.DarkBrightness:
		label := FungalInfection
		if saturation < t.PaleSaturation {
			label = NutrientDeficiency
		}
		margin := ratio(t.DarkBrightness-brightness, t.DarkBrightness)
		return Prediction{Label: label, Confidence: lerp(darkConfMin, darkConfMax, margin)}, nil
	}

	// Mid brightness: pick the disease with the strongest evidence.
	evidence := map[Label]float64{
		FungalInfection:    ratio(fv.Texture, t.TextureScale),
		BacterialInfection: ratio(fv.EdgeDensity, t.EdgeDensityScale),
		ViralInfection:     ratio(fv.HueStd, t.HueSpreadScale),
		NutrientDeficiency: ratio(t.PaleSaturation-saturation, t.PaleSaturation),
	}
	best, second := Label(""), -1.0
	bestScore := -1.0
	for _, l := range Diseases() {
		e := evidence[l]
		if e > bestScore {
			second = bestScore
			best, bestScore = l, e
		} else if e > second {
			second = e
		}
	}
	if second < 0 {
		second = 0
	}
	return Prediction{Label: best, Confidence: lerp(mixedConfMin, mixedConfMax, bestScore-second)}, nil
}

// ratio returns num/den clamped to [0,1]; a non-positive den yields 0.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return clamp01(num / den)
}

func lerp(lo, hi, f float64) float64 {
	return lo + (hi-lo)*clamp01(f)
}
