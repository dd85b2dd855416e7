package advisor

import (
	"fmt"
	"strconv"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

// FeatureWeight is one bar of the importance chart.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// SummaryRow is one row of the input summary table.
type SummaryRow struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// ValueText renders the value the way it was parsed, without trailing zeros.
func (r SummaryRow) ValueText() string { return strconv.FormatFloat(r.Value, 'f', -1, 64) }

// Recommendation is everything the result views need.
type Recommendation struct {
	Fertilizer  string          `json:"fertilizer"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	RateKgHa    float64         `json:"rate_kg_ha"`
	RateText    string          `json:"rate_text"`
	Importances []FeatureWeight `json:"importances,omitempty"`
	Summary     []SummaryRow    `json:"summary"`

	Sample entities.SoilSample `json:"-"`
}

// FormatRate renders an application rate with one decimal.
func FormatRate(rate float64) string { return fmt.Sprintf("%.1f kg/ha", rate) }

// ImportancePairs zips the weights with the feature labels. Anything that is not
// exactly one weight per feature is treated as "no importances".
func ImportancePairs(weights []float64) []FeatureWeight {
	if len(weights) != entities.FeatureCount {
		return nil
	}
	out := make([]FeatureWeight, entities.FeatureCount)
	for i, w := range weights {
		out[i] = FeatureWeight{Feature: entities.Features[i].Label, Weight: w}
	}
	return out
}

func SummaryTable(s entities.SoilSample) []SummaryRow {
	vals := s.Values()
	rows := make([]SummaryRow, entities.FeatureCount)
	for i, f := range entities.Features {
		rows[i] = SummaryRow{Parameter: f.Label, Value: vals[i], Unit: f.Unit}
	}
	return rows
}

// Present maps a prediction onto display data.
func Present(res entities.PredictionResult, sample entities.SoilSample, catalog *Catalog) *Recommendation {
	entry := catalog.Lookup(res.Fertilizer)
	return &Recommendation{
		Fertilizer:  res.Fertilizer,
		Description: entry.Description,
		Color:       entry.Color,
		RateKgHa:    res.RateKgHa,
		RateText:    FormatRate(res.RateKgHa),
		Importances: ImportancePairs(res.Importances),
		Summary:     SummaryTable(sample),
		Sample:      sample,
	}
}
