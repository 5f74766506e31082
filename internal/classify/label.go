// Package classify maps image feature vectors to plant-health labels.
package classify

import (
	"fmt"
	"strings"
)

// Label is a plant-health class.
type Label string

const (
	Healthy            Label = "healthy"
	FungalInfection    Label = "fungal_infection"
	BacterialInfection Label = "bacterial_infection"
	ViralInfection     Label = "viral_infection"
	NutrientDeficiency Label = "nutrient_deficiency"
)

// Labels returns the closed label set in canonical order.
func Labels() []Label {
	return []Label{Healthy, FungalInfection, BacterialInfection, ViralInfection, NutrientDeficiency}
}

// Diseases returns every label except Healthy.
func Diseases() []Label {
	return Labels()[1:]
}

// Valid reports whether l belongs to the closed set.
func (l Label) Valid() bool {
	for _, k := range Labels() {
		if l == k {
			return true
		}
	}
	return false
}

func (l Label) String() string { return string(l) }

// ParseLabel converts a string to a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown label %q", s)
	}
	return l, nil
}
