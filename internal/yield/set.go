package yield

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agro-advisor/internal/crop"
)

// ErrNotTrained is returned by models that have not been fitted.
var ErrNotTrained = errors.New("yield model is not trained")

// Model maps a yield input vector to a point estimate. Implementations must
// be safe for concurrent use.
type Model interface {
	Predict(x []float64) (float64, error)
}

// Options configures training and prediction of a Set.
type Options struct {
	Forest    ForestParams    `yaml:"forest"`
	Synthetic SyntheticConfig `yaml:"synthetic"`

	// Seed makes training and the prediction perturbation reproducible.
	Seed int64 `yaml:"seed"`

	// Jitter bounds the estimation-uncertainty perturbation added to every
	// prediction. Zero disables it.
	Jitter float64 `yaml:"jitter"`

	// Workers bounds how many crops train concurrently. Zero means one per crop.
	Workers int `yaml:"workers"`
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		Forest:    DefaultForestParams(),
		Synthetic: DefaultSyntheticConfig(),
		Seed:      42,
		Jitter:    0.3,
	}
}

// WithDefaults fills zero forest and generator fields from DefaultOptions.
// Seed, Jitter and NoiseStd are kept as given since zero is meaningful for
// them. The zero Options value yields DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o == (Options{}) {
		return def
	}
	if o.Forest.Trees <= 0 {
		o.Forest.Trees = def.Forest.Trees
	}
	if o.Forest.MaxDepth <= 0 {
		o.Forest.MaxDepth = def.Forest.MaxDepth
	}
	if o.Forest.MinLeaf <= 0 {
		o.Forest.MinLeaf = def.Forest.MinLeaf
	}
	if o.Synthetic.Samples <= 0 {
		o.Synthetic.Samples = def.Synthetic.Samples
	}
	for _, r := range []struct{ dst, def *Range }{
		{&o.Synthetic.Soil, &def.Synthetic.Soil},
		{&o.Synthetic.Rainfall, &def.Synthetic.Rainfall},
		{&o.Synthetic.Temperature, &def.Synthetic.Temperature},
		{&o.Synthetic.Area, &def.Synthetic.Area},
	} {
		if *r.dst == (Range{}) {
			*r.dst = *r.def
		}
	}
	return o
}

// Prediction is the output of Set.Predict.
type Prediction struct {
	Crop     string  // resolved crop id
	Yield    float64 // t/ha, >= 0, two decimals
	Fallback bool    // the requested crop was unknown
}

// Set holds one model per crop. It is read-only after construction.
type Set struct {
	registry *crop.Registry
	models   map[string]Model
	seed     int64
	jitter   float64
}

// NewSet wraps externally supplied models. Every registry crop needs a model.
func NewSet(registry *crop.Registry, models map[string]Model, seed int64, jitter float64) (*Set, error) {
	for _, p := range registry.Profiles() {
		if models[p.ID] == nil {
			return nil, fmt.Errorf("no yield model for crop %s", p.ID)
		}
	}
	m := make(map[string]Model, len(models))
	for k, v := range models {
		m[k] = v
	}
	return &Set{registry: registry, models: m, seed: seed, jitter: jitter}, nil
}

// Train fits a forest per registry crop on synthetic data. It blocks until
// every crop is trained or ctx is done. Zero option fields are filled by
// Options.WithDefaults.
func Train(ctx context.Context, registry *crop.Registry, opts Options, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithDefaults()
	profiles := registry.Profiles()
	forests := make([]*Forest, len(profiles))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			t0 := time.Now()
			rng := rand.New(rand.NewSource(cropSeed(opts.Seed, p.ID)))
			X, y := Generate(p, opts.Synthetic, rng)
			f, err := FitForest(gctx, X, y, opts.Forest, rng)
			if err != nil {
				return fmt.Errorf("train %s: %w", p.ID, err)
			}
			forests[i] = f
			logger.Debug("yield model trained",
				zap.String("crop", p.ID),
				zap.Int("samples", len(X)),
				zap.Int("trees", f.Size()),
				zap.Duration("elapsed", time.Since(t0)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	models := make(map[string]Model, len(profiles))
	for i, p := range profiles {
		models[p.ID] = forests[i]
	}
	logger.Info("yield models ready",
		zap.Int("crops", len(profiles)),
		zap.Int("trees_per_crop", opts.Forest.Trees),
		zap.Duration("elapsed", time.Since(start)))

	return NewSet(registry, models, opts.Seed, opts.Jitter)
}

// Predict estimates the yield of crop for in. Unknown crops use the default
// crop's model.
func (s *Set) Predict(cropID string, in Input) (Prediction, error) {
	p, known := s.registry.Lookup(cropID)
	model := s.models[p.ID]

	x := in.Vector()
	if err := checkVector(x); err != nil {
		return Prediction{}, err
	}
	raw, err := model.Predict(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict %s: %w", p.ID, err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Prediction{}, fmt.Errorf("predict %s: model returned %v", p.ID, raw)
	}

	v := math.Max(0, raw+s.perturbation(p.ID, x))
	return Prediction{Crop: p.ID, Yield: round2(v), Fallback: !known}, nil
}

// Importance returns the per-feature importance of a crop's model when the
// model exposes it.
func (s *Set) Importance(cropID string) map[string]float64 {
	p, _ := s.registry.Lookup(cropID)
	f, ok := s.models[p.ID].(*Forest)
	if !ok {
		return nil
	}
	out := make(map[string]float64, NumFeatures)
	for i, v := range f.Importance() {
		if i < NumFeatures {
			out[FeatureNames[i]] = v
		}
	}
	return out
}

// perturbation is a uniform offset in [-jitter, jitter] derived from the
// seed, the crop and the input, so equal requests get equal answers.
func (s *Set) perturbation(cropID string, x []float64) float64 {
	if s.jitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.seed))
	h.Write(buf[:])
	h.Write([]byte(cropID))
	for _, v := range x {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return (rng.Float64()*2 - 1) * s.jitter
}

func cropSeed(seed int64, cropID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(cropID))
	return seed ^ int64(h.Sum64())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
