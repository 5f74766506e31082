package features

import (
	"errors"
	"fmt"
	"math"
)

// Len is the number of channels in an image feature vector.
const Len = 8

var (
	// ErrDecode indicates malformed or unsupported image data.
	ErrDecode = errors.New("decode image")

	// ErrExtraction indicates a numeric failure on a decoded image.
	ErrExtraction = errors.New("extract features")
)

// Vector is the fixed-length numeric summary of a leaf image.
// Colour channels use the OpenCV HSV scale: H 0-180, S and V 0-255.
type Vector struct {
	HueMean float64 `json:"hue_mean"`
	SatMean float64 `json:"sat_mean"`
	ValMean float64 `json:"val_mean"`
	HueStd  float64 `json:"hue_std"`
	SatStd  float64 `json:"sat_std"`
	ValStd  float64 `json:"val_std"`

	// Texture is the variance of the Laplacian response on grayscale.
	Texture float64 `json:"texture"`

	// EdgeDensity is the fraction of Canny edge pixels (0-1).
	EdgeDensity float64 `json:"edge_density"`
}

// Names lists the channel names in Slice order.
func Names() []string {
	return []string{"hue_mean", "sat_mean", "val_mean", "hue_std", "sat_std", "val_std", "texture", "edge_density"}
}

// Slice returns the channels in a fixed order.
func (v Vector) Slice() []float64 {
	return []float64{v.HueMean, v.SatMean, v.ValMean, v.HueStd, v.SatStd, v.ValStd, v.Texture, v.EdgeDensity}
}

// FromSlice is the inverse of Slice.
func FromSlice(s []float64) (Vector, error) {
	if len(s) != Len {
		return Vector{}, fmt.Errorf("feature vector has %d channels, want %d", len(s), Len)
	}
	return Vector{
		HueMean: s[0], SatMean: s[1], ValMean: s[2],
		HueStd: s[3], SatStd: s[4], ValStd: s[5],
		Texture: s[6], EdgeDensity: s[7],
	}, nil
}

// Validate returns an error if any channel is NaN or infinite.
func (v Vector) Validate() error {
	names := Names()
	for i, x := range v.Slice() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("channel %s is not finite (%v)", names[i], x)
		}
	}
	return nil
}
