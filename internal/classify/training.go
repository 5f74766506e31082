package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agro-advisor/internal/features"
)

// Sample is one labeled feature vector.
type Sample struct {
	ID        string          `json:"id"`
	Label     Label           `json:"label"`
	Source    string          `json:"source"` // originating image path
	Features  features.Vector `json:"features"`
	Timestamp time.Time       `json:"timestamp"`
}

// TrainingSet holds labeled samples for the centroid scorer.
type TrainingSet struct {
	mu       sync.RWMutex
	Samples  []Sample `json:"samples"`
	FilePath string   `json:"-"`

	nextID int
}

// NewTrainingSet creates an empty training set.
func NewTrainingSet() *TrainingSet {
	return &TrainingSet{
		Samples: make([]Sample, 0),
		nextID:  1,
	}
}

// LoadTrainingSet loads a training set from a JSON file. A missing file
// yields an empty set bound to path.
func LoadTrainingSet(path string) (*TrainingSet, error) {
	ts := NewTrainingSet()
	ts.FilePath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ts, nil
		}
		return nil, fmt.Errorf("failed to read training set: %w", err)
	}

	if err := json.Unmarshal(data, ts); err != nil {
		return nil, fmt.Errorf("failed to parse training set: %w", err)
	}

	for _, s := range ts.Samples {
		var id int
		if _, err := fmt.Sscanf(s.ID, "ls-%d", &id); err == nil && id >= ts.nextID {
			ts.nextID = id + 1
		}
	}
	return ts, nil
}

// Save persists the training set to FilePath.
func (ts *TrainingSet) Save() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if ts.FilePath == "" {
		return fmt.Errorf("no file path set")
	}
	if err := os.MkdirAll(filepath.Dir(ts.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize training set: %w", err)
	}
	if err := os.WriteFile(ts.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write training set: %w", err)
	}
	return nil
}

// Add appends a labeled sample. Samples with an invalid label or
// non-finite features are rejected.
func (ts *TrainingSet) Add(label Label, fv features.Vector, source string) (*Sample, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("unknown label %q", label)
	}
	if err := fv.Validate(); err != nil {
		return nil, fmt.Errorf("sample %s: %w", source, err)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	s := Sample{
		ID:        fmt.Sprintf("ls-%04d", ts.nextID),
		Label:     label,
		Source:    source,
		Features:  fv,
		Timestamp: time.Now(),
	}
	ts.nextID++
	ts.Samples = append(ts.Samples, s)
	return &s, nil
}

// Count returns the total number of samples.
func (ts *TrainingSet) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.Samples)
}

// Counts returns the number of samples per label.
func (ts *TrainingSet) Counts() map[Label]int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	counts := make(map[Label]int)
	for _, s := range ts.Samples {
		counts[s.Label]++
	}
	return counts
}

// ByLabel groups sample vectors by label.
func (ts *TrainingSet) ByLabel() map[Label][]features.Vector {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	out := make(map[Label][]features.Vector)
	for _, s := range ts.Samples {
		out[s.Label] = append(out[s.Label], s.Features)
	}
	return out
}
