// Package features turns raw leaf images into fixed-length feature vectors.
package features

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Params controls the extraction pipeline.
type Params struct {
	// Size is the side of the square the image is normalized to.
	Size int `yaml:"size"`

	// Canny hysteresis thresholds.
	CannyLow  float32 `yaml:"canny_low"`
	CannyHigh float32 `yaml:"canny_high"`

	// MaxPixels rejects larger images at decode time. Zero disables the check.
	MaxPixels int `yaml:"max_pixels"`
}

// DefaultParams returns the standard 224x224 pipeline with Canny 50/150.
func DefaultParams() Params {
	return Params{
		Size:      224,
		CannyLow:  50,
		CannyHigh: 150,
		MaxPixels: 40_000_000,
	}
}

// Extractor computes feature vectors. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	params Params
}

// NewExtractor creates an extractor, filling zero fields from DefaultParams.
func NewExtractor(p Params) *Extractor {
	def := DefaultParams()
	if p.Size <= 0 {
		p.Size = def.Size
	}
	if p.CannyLow <= 0 {
		p.CannyLow = def.CannyLow
	}
	if p.CannyHigh <= 0 {
		p.CannyHigh = def.CannyHigh
	}
	return &Extractor{params: p}
}

// Params returns the effective parameters.
func (e *Extractor) Params() Params {
	return e.params
}

// Extract decodes data and computes its feature vector.
func (e *Extractor) Extract(data []byte) (Vector, error) {
	img, _, err := Decode(data, e.params.MaxPixels)
	if err != nil {
		return Vector{}, err
	}
	return e.ExtractImage(img)
}

// ExtractImage computes the feature vector of an already decoded image.
func (e *Extractor) ExtractImage(img image.Image) (Vector, error) {
	if img == nil || img.Bounds().Empty() {
		return Vector{}, fmt.Errorf("%w: empty image", ErrExtraction)
	}

	norm := Normalize(img, e.params.Size)
	bgr, err := rgbaToMat(norm)
	if err != nil {
		return Vector{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer bgr.Close()

	var fv Vector

	// Colour statistics in HSV
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mean, std, err := meanStdDev(hsv, 3)
	if err != nil {
		return Vector{}, err
	}
	fv.HueMean, fv.SatMean, fv.ValMean = mean[0], mean[1], mean[2]
	fv.HueStd, fv.SatStd, fv.ValStd = std[0], std[1], std[2]

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	// Texture energy: variance of the second-derivative response
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	_, lapStd, err := meanStdDev(lap, 1)
	if err != nil {
		return Vector{}, err
	}
	fv.Texture = lapStd[0] * lapStd[0]

	// Edge density
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, e.params.CannyLow, e.params.CannyHigh)
	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return Vector{}, fmt.Errorf("%w: empty edge map", ErrExtraction)
	}
	fv.EdgeDensity = float64(gocv.CountNonZero(edges)) / float64(total)

	if err := fv.Validate(); err != nil {
		return Vector{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return fv, nil
}

// meanStdDev returns per-channel mean and standard deviation of m.
func meanStdDev(m gocv.Mat, channels int) (mean, std []float64, err error) {
	if m.Empty() {
		return nil, nil, fmt.Errorf("%w: empty matrix", ErrExtraction)
	}

	meanMat := gocv.NewMat()
	defer meanMat.Close()
	stdMat := gocv.NewMat()
	defer stdMat.Close()
	gocv.MeanStdDev(m, &meanMat, &stdMat)

	if meanMat.Rows() < channels || stdMat.Rows() < channels {
		return nil, nil, fmt.Errorf("%w: expected %d channel statistics, got %d", ErrExtraction, channels, meanMat.Rows())
	}

	mean = make([]float64, channels)
	std = make([]float64, channels)
	for c := 0; c < channels; c++ {
		mean[c] = meanMat.GetDoubleAt(c, 0)
		std[c] = stdMat.GetDoubleAt(c, 0)
	}
	return mean, std, nil
}

// rgbaToMat converts an RGBA image to a BGR Mat in OpenCV channel order.
func rgbaToMat(img *image.RGBA) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	buf := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			buf = append(buf, px[2], px[1], px[0])
		}
	}

	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
}
