package classify

import (
	"errors"
	"fmt"

	"agro-advisor/internal/features"
)

// ErrInvalidVector is returned when a scorer receives non-finite channels.
var ErrInvalidVector = errors.New("invalid feature vector")

// Prediction is a label with its raw confidence in [0,1].
type Prediction struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Scorer is the model contract of the diagnosis pipeline. Implementations
// must be deterministic and safe for concurrent use.
type Scorer interface {
	Score(fv features.Vector) (Prediction, error)
}

func checkVector(fv features.Vector) error {
	if err := fv.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
