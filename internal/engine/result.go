package engine

import (
	"agro-advisor/internal/advise"
	"agro-advisor/internal/classify"
	"agro-advisor/internal/crop"
)

// Diagnosis is the result of Diagnose.
type Diagnosis struct {
	IsHealthy       bool     `json:"is_healthy"`
	DiseaseName     *string  `json:"disease_name"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
	Details         Details  `json:"details"`
}

// Details carries diagnosis bookkeeping.
type Details struct {
	FeaturesExtracted int            `json:"features_extracted"`
	DiseaseType       classify.Label `json:"disease_type"`
	Timestamp         string         `json:"timestamp"`
}

// Forecast is the result of ForecastYield.
type Forecast struct {
	CropType       string               `json:"crop_type"`
	PredictedYield float64              `json:"predicted_yield"`
	Confidence     float64              `json:"confidence"`
	Suggestions    []string             `json:"suggestions"`
	Analysis       advise.Analysis      `json:"analysis"`
	OptimalRanges  map[string]crop.Band `json:"optimal_ranges"`

	// FeatureImportance is the share of the crop model's fit credited to
	// each input. Absent for models that do not report it.
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`

	// CropFallback is set when the requested crop was unknown and the
	// default profile was used.
	CropFallback bool `json:"crop_fallback,omitempty"`
}

// Batch item statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BatchItem is the outcome for one image of a batch.
type BatchItem struct {
	Index  int        `json:"image_index"`
	Status string     `json:"status"`
	Result *Diagnosis `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Healthy    int `json:"healthy"`
}

// BatchResult is the result of DiagnoseBatch. Items keep input order.
type BatchResult struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Results   []BatchItem  `json:"results"`
	Summary   BatchSummary `json:"summary"`
}
