package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agro-advisor/internal/advise"
	"agro-advisor/internal/classify"
	"agro-advisor/internal/crop"
	"agro-advisor/internal/features"
	"agro-advisor/internal/yield"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

type stubExtractor struct {
	fv  features.Vector
	err error
}

func (s stubExtractor) Extract(data []byte) (features.Vector, error) {
	if s.err != nil {
		return features.Vector{}, s.err
	}
	if string(data) == "bad" {
		return features.Vector{}, features.ErrDecode
	}
	return s.fv, nil
}

type stubScorer struct {
	pred classify.Prediction
	err  error
}

func (s stubScorer) Score(features.Vector) (classify.Prediction, error) {
	return s.pred, s.err
}

type constModel float64

func (c constModel) Predict([]float64) (float64, error) { return float64(c), nil }

type failModel struct{}

func (failModel) Predict([]float64) (float64, error) { return 0, errors.New("model exploded") }

func constSet(t *testing.T, v float64) *yield.Set {
	t.Helper()
	m := map[string]yield.Model{}
	for _, p := range crop.Default().Profiles() {
		m[p.ID] = constModel(v)
	}
	set, err := yield.NewSet(crop.Default(), m, 1, 0)
	require.NoError(t, err)
	return set
}

func newStubEngine(t *testing.T, ext Extractor, sc classify.Scorer) *Engine {
	t.Helper()
	e, err := New(context.Background(), Options{
		Extractor: ext,
		Scorer:    sc,
		Models:    constSet(t, 4.2),
		Clock:     fixedClock,
	})
	require.NoError(t, err)
	return e
}

func smallYield() yield.Options {
	opts := yield.DefaultOptions()
	opts.Forest = yield.ForestParams{Trees: 10, MaxDepth: 6, MinLeaf: 2}
	opts.Synthetic.Samples = 200
	return opts
}

func wheatRequest() Request {
	return Request{
		Crop:  "пшеница",
		Input: yield.Input{SoilQuality: 7, Rainfall: 100, Temperature: 20, Area: 10, Fertilizer: true},
	}
}

func TestForecastWheat(t *testing.T) {
	e, err := New(context.Background(), Options{Yield: smallYield(), Clock: fixedClock})
	require.NoError(t, err)

	f, err := e.ForecastYield(context.Background(), wheatRequest())
	require.NoError(t, err)

	assert.Equal(t, "пшеница", f.CropType)
	assert.Greater(t, f.PredictedYield, 0.0)
	assert.Equal(t, f.PredictedYield, math.Round(f.PredictedYield*100)/100)
	assert.Equal(t, 0.95, f.Confidence)
	assert.Equal(t, advise.AllInRange, f.Analysis.MainImprovement)
	assert.Empty(t, f.Analysis.LimitingFactors)
	assert.NotEmpty(t, f.Suggestions)
	assert.Equal(t, crop.Band{Min: 15, Max: 25}, f.OptimalRanges["temp"])
	assert.False(t, f.CropFallback)

	require.Len(t, f.FeatureImportance, yield.NumFeatures)
	total := 0.0
	for _, name := range yield.FeatureNames {
		v, ok := f.FeatureImportance[name]
		require.True(t, ok, name)
		assert.Equal(t, v, math.Round(v*1000)/1000, name)
		total += v
	}
	assert.InDelta(t, 1.0, total, 0.01)

	again, err := e.ForecastYield(context.Background(), wheatRequest())
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestForecastJSONShape(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	f, err := e.ForecastYield(context.Background(), wheatRequest())
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"predicted_yield", "confidence", "suggestions", "analysis", "optimal_ranges"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, []any{15.0, 25.0}, m["optimal_ranges"].(map[string]any)["temp"])
	analysis := m["analysis"].(map[string]any)
	assert.Contains(t, analysis, "factor_impact")
	assert.Equal(t, []any{}, analysis["limiting_factors"])
	assert.NotContains(t, m, "crop_fallback")
	assert.NotContains(t, m, "feature_importance")
}

func TestForecastFallback(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	req := wheatRequest()
	req.Crop = "кокос"

	f, err := e.ForecastYield(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, f.CropFallback)
	assert.Equal(t, "пшеница", f.CropType)
	assert.Equal(t, 4.2, f.PredictedYield)

	def, err := e.ForecastYield(context.Background(), wheatRequest())
	require.NoError(t, err)
	assert.Equal(t, def.Confidence, f.Confidence)
	assert.Equal(t, def.OptimalRanges, f.OptimalRanges)
}

func TestForecastModelError(t *testing.T) {
	m := map[string]yield.Model{}
	for _, p := range crop.Default().Profiles() {
		m[p.ID] = failModel{}
	}
	set, err := yield.NewSet(crop.Default(), m, 1, 0)
	require.NoError(t, err)
	e, err := New(context.Background(), Options{Models: set})
	require.NoError(t, err)

	f, err := e.ForecastYield(context.Background(), wheatRequest())
	assert.Nil(t, f)
	assert.Equal(t, KindModelInference, KindOf(err))
	assert.True(t, errors.Is(err, &Error{Kind: KindModelInference}))
	assert.False(t, errors.Is(err, &Error{Kind: KindDecode}))
}

func TestForecastConfidenceBounds(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	for _, p := range e.Crops() {
		for _, in := range []yield.Input{
			{SoilQuality: 1, Rainfall: 0, Temperature: -10, Area: 1},
			{SoilQuality: 10, Rainfall: 500, Temperature: 50, Area: 10000, Fertilizer: true},
		} {
			f, err := e.ForecastYield(context.Background(), Request{Crop: p.ID, Input: in})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, f.Confidence, 0.3)
			assert.LessOrEqual(t, f.Confidence, 0.95)
			assert.NotEmpty(t, f.Suggestions)
			assert.NotEqual(t, advise.AllInRange, f.Analysis.MainImprovement)
		}
	}
}

func pngBytes(t *testing.T, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDiagnoseImage(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	img := pngBytes(t, func(x, y int) color.RGBA {
		if (x/8+y/8)%2 == 0 {
			return color.RGBA{40, 200, 40, 255}
		}
		return color.RGBA{230, 240, 120, 255}
	})

	d, err := e.Diagnose(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, features.Len, d.Details.FeaturesExtracted)
	assert.Equal(t, fixedTime.Format(time.RFC3339), d.Details.Timestamp)
	assert.True(t, d.Details.DiseaseType.Valid())
	assert.GreaterOrEqual(t, d.Confidence, 0.0)
	assert.LessOrEqual(t, d.Confidence, 1.0)
	assert.NotEmpty(t, d.Recommendations)
	assert.Equal(t, d.IsHealthy, d.DiseaseName == nil)

	again, err := e.Diagnose(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestDiagnoseHealthyJSON(t *testing.T) {
	e := newStubEngine(t, stubExtractor{}, stubScorer{pred: classify.Prediction{Label: classify.Healthy, Confidence: 0.9}})
	d, err := e.Diagnose(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.True(t, d.IsHealthy)
	assert.Nil(t, d.DiseaseName)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, advise.ForDiagnosis(classify.Healthy), d.Recommendations)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"disease_name":null`)
	assert.Contains(t, string(data), `"disease_type":"healthy"`)
}

func TestDiagnoseDisease(t *testing.T) {
	e := newStubEngine(t, stubExtractor{}, stubScorer{pred: classify.Prediction{Label: classify.ViralInfection, Confidence: 1.3}})
	d, err := e.Diagnose(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.False(t, d.IsHealthy)
	require.NotNil(t, d.DiseaseName)
	assert.Equal(t, "viral_infection", *d.DiseaseName)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestDiagnoseErrors(t *testing.T) {
	okScorer := stubScorer{pred: classify.Prediction{Label: classify.Healthy, Confidence: 0.8}}

	tests := []struct {
		name  string
		ext   Extractor
		sc    classify.Scorer
		image []byte
		kind  Kind
	}{
		{"decode", nil, okScorer, []byte("not an image"), KindDecode},
		{"empty", nil, okScorer, nil, KindDecode},
		{"extraction", stubExtractor{err: features.ErrExtraction}, okScorer, []byte("x"), KindFeatureExtraction},
		{"scorer", stubExtractor{}, stubScorer{err: classify.ErrInvalidVector}, []byte("x"), KindModelInference},
		{"bad label", stubExtractor{}, stubScorer{pred: classify.Prediction{Label: "rust"}}, []byte("x"), KindModelInference},
		{"nan confidence", stubExtractor{}, stubScorer{pred: classify.Prediction{Label: classify.Healthy, Confidence: math.NaN()}}, []byte("x"), KindModelInference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newStubEngine(t, tt.ext, tt.sc)
			d, err := e.Diagnose(context.Background(), tt.image)
			assert.Nil(t, d)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))

			var ee *Error
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, "diagnose", ee.Op)
		})
	}
}

func TestDiagnoseDecodeUnwraps(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	_, err := e.Diagnose(context.Background(), []byte("garbage"))
	assert.ErrorIs(t, err, features.ErrDecode)
}

func TestDiagnoseBatch(t *testing.T) {
	e := newStubEngine(t, stubExtractor{}, stubScorer{pred: classify.Prediction{Label: classify.Healthy, Confidence: 0.8}})
	images := [][]byte{[]byte("a"), []byte("bad"), []byte("c"), []byte("bad")}

	res, err := e.DiagnoseBatch(context.Background(), images)
	require.NoError(t, err)
	require.Len(t, res.Results, 4)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, BatchSummary{Total: 4, Successful: 2, Failed: 2, Healthy: 2}, res.Summary)
	for i, it := range res.Results {
		assert.Equal(t, i, it.Index)
	}
	assert.Equal(t, StatusSuccess, res.Results[0].Status)
	assert.Equal(t, StatusError, res.Results[1].Status)
	assert.NotEmpty(t, res.Results[1].Error)
	assert.Nil(t, res.Results[1].Result)
}

func TestDiagnoseBatchSize(t *testing.T) {
	e := newStubEngine(t, stubExtractor{}, stubScorer{pred: classify.Prediction{Label: classify.Healthy}})

	_, err := e.DiagnoseBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBatchSize)

	images := make([][]byte, DefaultMaxBatch+1)
	_, err = e.DiagnoseBatch(context.Background(), images)
	assert.ErrorIs(t, err, ErrBatchSize)

	res, err := e.DiagnoseBatch(context.Background(), images[:DefaultMaxBatch])
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBatch, res.Summary.Total)
}

type blockingExtractor struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingExtractor) Extract([]byte) (features.Vector, error) {
	b.entered <- struct{}{}
	<-b.release
	return features.Vector{}, nil
}

func TestWorkerLimitHonoursDeadline(t *testing.T) {
	ext := blockingExtractor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e, err := New(context.Background(), Options{
		Extractor: ext,
		Scorer:    stubScorer{pred: classify.Prediction{Label: classify.Healthy, Confidence: 0.8}},
		Models:    constSet(t, 1),
		Workers:   1,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := e.Diagnose(context.Background(), []byte("x"))
		assert.NoError(t, err)
	}()
	<-ext.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.ForecastYield(ctx, wheatRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindCanceled, KindOf(err))
	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "forecast", ee.Op)

	busy, cancelBusy := context.WithCancel(context.Background())
	cancelBusy()
	_, err = e.Diagnose(busy, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, KindOf(err))

	close(ext.release)
	wg.Wait()

	_, err = e.ForecastYield(context.Background(), wheatRequest())
	assert.NoError(t, err)
}

func TestConcurrentForecasts(t *testing.T) {
	e, err := New(context.Background(), Options{Yield: smallYield(), Workers: 4})
	require.NoError(t, err)

	want, err := e.ForecastYield(context.Background(), wheatRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.ForecastYield(context.Background(), wheatRequest())
			if assert.NoError(t, err) {
				assert.Equal(t, want, got)
			}
		}()
	}
	wg.Wait()
}

func TestNewCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ctx, Options{Yield: smallYield()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrops(t *testing.T) {
	e := newStubEngine(t, nil, nil)
	crops := e.Crops()
	require.Len(t, crops, 6)
	assert.Equal(t, "пшеница", crops[0].ID)
	assert.Equal(t, DefaultMaxBatch, e.MaxBatch())
}

func TestRequestValidate(t *testing.T) {
	ok := wheatRequest()
	require.NoError(t, ok.Validate())

	tests := []struct {
		name string
		mod  func(r *Request)
	}{
		{"soil low", func(r *Request) { r.SoilQuality = 0.5 }},
		{"soil high", func(r *Request) { r.SoilQuality = 11 }},
		{"rain negative", func(r *Request) { r.Rainfall = -1 }},
		{"rain high", func(r *Request) { r.Rainfall = 501 }},
		{"temp low", func(r *Request) { r.Temperature = -11 }},
		{"temp high", func(r *Request) { r.Temperature = 51 }},
		{"area zero", func(r *Request) { r.Area = 0 }},
		{"area high", func(r *Request) { r.Area = 10001 }},
		{"nan", func(r *Request) { r.Rainfall = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := wheatRequest()
			tt.mod(&r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidRequest)
		})
	}

	edge := Request{Input: yield.Input{SoilQuality: 1, Rainfall: 0, Temperature: -10, Area: 10000}}
	assert.NoError(t, edge.Validate())
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindDecode, Op: "diagnose", Err: features.ErrDecode}
	assert.Equal(t, "diagnose: decode failed: decode image", err.Error())
	assert.Equal(t, "model inference", KindModelInference.String())
	assert.Equal(t, "canceled", KindCanceled.String())
	assert.Zero(t, KindOf(errors.New("plain")))
}

func TestNewKeepsPartialYieldOptions(t *testing.T) {
	opts := yield.Options{
		Forest:    yield.ForestParams{Trees: 4, MaxDepth: 4},
		Synthetic: yield.SyntheticConfig{Samples: 60},
		Seed:      11,
	}
	e, err := New(context.Background(), Options{Yield: opts})
	require.NoError(t, err)

	set, err := yield.Train(context.Background(), crop.Default(), opts, nil)
	require.NoError(t, err)

	for _, p := range e.Crops() {
		req := wheatRequest()
		req.Crop = p.ID
		f, err := e.ForecastYield(context.Background(), req)
		require.NoError(t, err)
		want, err := set.Predict(p.ID, req.Input)
		require.NoError(t, err)
		// Jitter was left at zero, so it stays disabled.
		assert.Equal(t, want.Yield, f.PredictedYield, p.ID)
	}
}
