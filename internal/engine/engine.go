// Package engine sequences the diagnosis and yield pipelines behind one
// request-scoped API. An Engine is safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"agro-advisor/internal/advise"
	"agro-advisor/internal/calibrate"
	"agro-advisor/internal/classify"
	"agro-advisor/internal/crop"
	"agro-advisor/internal/features"
	"agro-advisor/internal/yield"
)

// DefaultMaxBatch is the largest batch DiagnoseBatch accepts by default.
const DefaultMaxBatch = 10

// Extractor turns encoded image bytes into a feature vector.
// *features.Extractor satisfies it.
type Extractor interface {
	Extract(data []byte) (features.Vector, error)
}

// Options configures New. Zero fields take defaults.
type Options struct {
	Registry  *crop.Registry
	Extractor Extractor
	Scorer    classify.Scorer

	// Models replaces yield training when set. Otherwise Yield is completed
	// with yield.Options.WithDefaults and used for training.
	Models *yield.Set
	Yield  yield.Options

	Calibration calibrate.YieldParams

	// Workers bounds concurrent CPU-bound pipeline stages.
	Workers  int
	MaxBatch int

	Logger *zap.Logger
	Clock  func() time.Time
}

// Engine runs the diagnosis and yield pipelines.
type Engine struct {
	registry    *crop.Registry
	extractor   Extractor
	scorer      classify.Scorer
	models      *yield.Set
	calibration calibrate.YieldParams
	sem         *semaphore.Weighted
	maxBatch    int
	log         *zap.Logger
	now         func() time.Time
}

// New builds an Engine. Unless opts.Models is set it trains the yield models
// first, which blocks until training finishes or ctx is done.
func New(ctx context.Context, opts Options) (*Engine, error) {
	e := &Engine{
		registry:    opts.Registry,
		extractor:   opts.Extractor,
		scorer:      opts.Scorer,
		models:      opts.Models,
		calibration: opts.Calibration,
		maxBatch:    opts.MaxBatch,
		log:         opts.Logger,
		now:         opts.Clock,
	}
	if e.registry == nil {
		e.registry = crop.Default()
	}
	if e.extractor == nil {
		e.extractor = features.NewExtractor(features.DefaultParams())
	}
	if e.scorer == nil {
		e.scorer = classify.NewHeuristicScorer(classify.DefaultThresholds())
	}
	if e.calibration == (calibrate.YieldParams{}) {
		e.calibration = calibrate.DefaultYieldParams()
	}
	if e.maxBatch <= 0 {
		e.maxBatch = DefaultMaxBatch
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e.sem = semaphore.NewWeighted(int64(workers))

	if e.models == nil {
		models, err := yield.Train(ctx, e.registry, opts.Yield, e.log.Named("yield"))
		if err != nil {
			return nil, fmt.Errorf("train yield models: %w", err)
		}
		e.models = models
	}

	e.log.Info("engine ready",
		zap.Int("crops", len(e.registry.Profiles())),
		zap.Int("workers", workers),
		zap.Int("max_batch", e.maxBatch))
	return e, nil
}

// Crops lists the known crops.
func (e *Engine) Crops() []crop.Info {
	return e.registry.List()
}

// MaxBatch returns the largest accepted batch.
func (e *Engine) MaxBatch() int {
	return e.maxBatch
}

// Diagnose classifies the plant health shown in an encoded image. Every
// failure is an *Error.
func (e *Engine) Diagnose(ctx context.Context, image []byte) (*Diagnosis, error) {
	log := e.log.With(zap.String("request_id", uuid.NewString()), zap.String("op", "diagnose"))
	start := e.now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Kind: KindCanceled, Op: "diagnose", Err: err}
	}
	d, err := e.diagnose(image)
	e.sem.Release(1)

	if err != nil {
		log.Warn("diagnosis failed", zap.Error(err))
		return nil, err
	}
	log.Debug("diagnosis done",
		zap.String("label", string(d.Details.DiseaseType)),
		zap.Float64("confidence", d.Confidence),
		zap.Duration("elapsed", e.now().Sub(start)))
	return d, nil
}

func (e *Engine) diagnose(image []byte) (*Diagnosis, error) {
	const op = "diagnose"

	fv, err := e.extractor.Extract(image)
	if err != nil {
		kind := KindFeatureExtraction
		if errors.Is(err, features.ErrDecode) {
			kind = KindDecode
		}
		return nil, &Error{Kind: kind, Op: op, Err: err}
	}

	pred, err := e.scorer.Score(fv)
	if err != nil {
		return nil, &Error{Kind: KindModelInference, Op: op, Err: err}
	}
	if !pred.Label.Valid() {
		return nil, &Error{Kind: KindModelInference, Op: op, Err: fmt.Errorf("unknown label %q", pred.Label)}
	}
	conf, err := calibrate.Diagnosis(pred.Confidence)
	if err != nil {
		return nil, &Error{Kind: KindModelInference, Op: op, Err: err}
	}

	d := &Diagnosis{
		IsHealthy:       pred.Label == classify.Healthy,
		Confidence:      conf,
		Recommendations: advise.ForDiagnosis(pred.Label),
		Details: Details{
			FeaturesExtracted: features.Len,
			DiseaseType:       pred.Label,
			Timestamp:         e.now().Format(time.RFC3339),
		},
	}
	if !d.IsHealthy {
		name := pred.Label.String()
		d.DiseaseName = &name
	}
	return d, nil
}

// ForecastYield estimates the yield for req. Unknown crops fall back to the
// default profile. Input bounds are not checked here; see Request.Validate.
// Every failure is an *Error.
func (e *Engine) ForecastYield(ctx context.Context, req Request) (*Forecast, error) {
	const op = "forecast"
	log := e.log.With(zap.String("request_id", uuid.NewString()), zap.String("op", op))
	start := e.now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Kind: KindCanceled, Op: op, Err: err}
	}
	pred, err := e.models.Predict(req.Crop, req.Input)
	e.sem.Release(1)
	if err != nil {
		err = &Error{Kind: KindModelInference, Op: op, Err: err}
		log.Warn("forecast failed", zap.String("crop", req.Crop), zap.Error(err))
		return nil, err
	}
	if pred.Fallback {
		log.Debug("unknown crop, using default", zap.String("requested", req.Crop), zap.String("crop", pred.Crop))
	}

	p, _ := e.registry.Lookup(pred.Crop)
	f := &Forecast{
		CropType:       p.ID,
		PredictedYield: pred.Yield,
		Confidence:     e.calibration.Yield(p, req.SoilQuality, req.Rainfall, req.Temperature),
		Suggestions:    advise.ForYield(p, req.Input),
		Analysis:       advise.AnalyzeFactors(p, req.Input),
		OptimalRanges:  p.OptimalRanges(),
		CropFallback:   pred.Fallback,
	}
	if imp := e.models.Importance(p.ID); imp != nil {
		f.FeatureImportance = make(map[string]float64, len(imp))
		for k, v := range imp {
			f.FeatureImportance[k] = math.Round(v*1000) / 1000
		}
	}
	log.Debug("forecast done",
		zap.String("crop", f.CropType),
		zap.Float64("yield", f.PredictedYield),
		zap.Float64("confidence", f.Confidence),
		zap.Duration("elapsed", e.now().Sub(start)))
	return f, nil
}

// DiagnoseBatch diagnoses up to MaxBatch images concurrently. A failing image
// is reported in its item and does not fail the batch.
func (e *Engine) DiagnoseBatch(ctx context.Context, images [][]byte) (*BatchResult, error) {
	if len(images) == 0 || len(images) > e.maxBatch {
		return nil, fmt.Errorf("%w: got %d images, want 1 to %d", ErrBatchSize, len(images), e.maxBatch)
	}

	items := make([]BatchItem, len(images))
	var g errgroup.Group
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			items[i] = BatchItem{Index: i}
			d, err := e.Diagnose(ctx, img)
			if err != nil {
				items[i].Status = StatusError
				items[i].Error = err.Error()
				return nil
			}
			items[i].Status = StatusSuccess
			items[i].Result = d
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{
		Status:    "completed",
		Timestamp: e.now().Format(time.RFC3339),
		Results:   items,
		Summary:   BatchSummary{Total: len(items)},
	}
	for _, it := range items {
		if it.Status == StatusSuccess {
			res.Summary.Successful++
			if it.Result.IsHealthy {
				res.Summary.Healthy++
			}
		} else {
			res.Summary.Failed++
		}
	}
	return res, nil
}
