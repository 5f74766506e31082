// Package config loads engine settings from a YAML file, an optional .env
// file and AGRO_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"agro-advisor/internal/classify"
	"agro-advisor/internal/features"
	"agro-advisor/internal/logging"
	"agro-advisor/internal/yield"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGRO_"

// Config is the full application configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Image      features.Params  `yaml:"image"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Yield      yield.Options    `yaml:"yield"`
	Crops      CropsConfig      `yaml:"crops"`
	Log        logging.Config   `yaml:"log"`
}

// EngineConfig sizes the request path.
type EngineConfig struct {
	Workers  int `yaml:"workers"` // 0 means one per CPU
	MaxBatch int `yaml:"max_batch"`
}

// ClassifierConfig selects the disease scorer.
type ClassifierConfig struct {
	// Model is a centroid model file. Empty selects the heuristic scorer.
	Model      string              `yaml:"model"`
	Thresholds classify.Thresholds `yaml:"thresholds"`
}

// CropsConfig points at an optional crop profile table.
type CropsConfig struct {
	// Table replaces the built-in profiles when set.
	Table string `yaml:"table"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine:     EngineConfig{MaxBatch: 10},
		Image:      features.DefaultParams(),
		Classifier: ClassifierConfig{Thresholds: classify.DefaultThresholds()},
		Yield:      yield.DefaultOptions(),
		Log:        logging.Config{Level: "info"},
	}
}

// Load builds the configuration. path may be empty. A .env file in the
// working directory is read if present; it never overrides variables that
// are already set.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	setInt("WORKERS", &c.Engine.Workers)
	setInt("MAX_BATCH", &c.Engine.MaxBatch)
	setInt("IMAGE_SIZE", &c.Image.Size)
	setString("CLASSIFIER_MODEL", &c.Classifier.Model)
	setInt("TREES", &c.Yield.Forest.Trees)
	setInt("MAX_DEPTH", &c.Yield.Forest.MaxDepth)
	setInt("SAMPLES", &c.Yield.Synthetic.Samples)
	setFloat("JITTER", &c.Yield.Jitter)
	setString("CROP_TABLE", &c.Crops.Table)
	setString("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Yield.Seed = n
		}
	}
	if v, ok := lookup("LOG_DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sLOG_DEVELOPMENT: %w", EnvPrefix, err))
		} else {
			c.Log.Development = b
		}
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Engine.Workers < 0:
		return fmt.Errorf("engine.workers must not be negative")
	case c.Engine.MaxBatch <= 0:
		return fmt.Errorf("engine.max_batch must be positive")
	case c.Image.Size < 8:
		return fmt.Errorf("image.size %d is too small", c.Image.Size)
	case c.Yield.Forest.Trees <= 0:
		return fmt.Errorf("yield.forest.trees must be positive")
	case c.Yield.Forest.MaxDepth <= 0:
		return fmt.Errorf("yield.forest.max_depth must be positive")
	case c.Yield.Synthetic.Samples <= 0:
		return fmt.Errorf("yield.synthetic.samples must be positive")
	case c.Yield.Jitter < 0:
		return fmt.Errorf("yield.jitter must not be negative")
	}
	return nil
}
