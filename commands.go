package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agro-advisor/internal/classify"
	"agro-advisor/internal/config"
	"agro-advisor/internal/crop"
	"agro-advisor/internal/engine"
	"agro-advisor/internal/features"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image>...",
	Short: "Diagnose plant health from one or more leaf images",
	Long: `Diagnoses each image with the configured classifier. A single image
prints one diagnosis; several images run as a batch and print per-image
results with a summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiagnose,
}

var forecastReq engine.Request

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast crop yield from field parameters",
	Example: `  agro-advisor forecast --crop пшеница --soil 7 --rain 100 --temp 20 --area 10 --fertilizer`,
	RunE: runForecast,
}

var cropsCmd = &cobra.Command{
	Use:   "crops",
	Short: "List the supported crops",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"crops": reg.List()})
	},
}

func init() {
	f := forecastCmd.Flags()
	f.StringVar(&forecastReq.Crop, "crop", "пшеница", "crop identifier or alias")
	f.Float64Var(&forecastReq.SoilQuality, "soil", 7, "soil quality, 1-10")
	f.Float64Var(&forecastReq.Rainfall, "rain", 100, "rainfall, mm")
	f.Float64Var(&forecastReq.Temperature, "temp", 20, "mean temperature, °C")
	f.Float64Var(&forecastReq.Area, "area", 1, "field area, ha")
	f.BoolVar(&forecastReq.Fertilizer, "fertilizer", false, "fertilizer is used")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	images := make([][]byte, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		images[i] = data
	}

	e, err := buildEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if len(images) == 1 {
		d, err := e.Diagnose(ctx, images[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, d)
	}
	res, err := e.DiagnoseBatch(ctx, images)
	if err != nil {
		return err
	}
	for _, it := range res.Results {
		if it.Status == engine.StatusError {
			logger.Warn("image failed", zap.String("path", args[it.Index]), zap.String("error", it.Error))
		}
	}
	return printJSON(cmd, res)
}

func runForecast(cmd *cobra.Command, args []string) error {
	if err := forecastReq.Validate(); err != nil {
		return err
	}
	e, err := buildEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	f, err := e.ForecastYield(ctx, forecastReq)
	if err != nil {
		return err
	}
	return printJSON(cmd, f)
}

func loadRegistry(c config.Config) (*crop.Registry, error) {
	if c.Crops.Table == "" {
		return crop.Default(), nil
	}
	return crop.Load(c.Crops.Table)
}

func buildScorer(c config.Config) (classify.Scorer, error) {
	if c.Classifier.Model == "" {
		return classify.NewHeuristicScorer(c.Classifier.Thresholds), nil
	}
	sc, err := classify.LoadCentroidScorer(c.Classifier.Model)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	return sc, nil
}

func buildEngine(ctx context.Context, c config.Config) (*engine.Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reg, err := loadRegistry(c)
	if err != nil {
		return nil, err
	}
	sc, err := buildScorer(c)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, engine.Options{
		Registry:  reg,
		Extractor: features.NewExtractor(c.Image),
		Scorer:    sc,
		Yield:     c.Yield,
		Workers:   c.Engine.Workers,
		MaxBatch:  c.Engine.MaxBatch,
		Logger:    logger,
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
