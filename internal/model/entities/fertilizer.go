package entities

// FertilizerCatalogEntry is the static display metadata of a fertilizer.
type FertilizerCatalogEntry struct {
	Name        string `json:"name" yaml:"name"`
	Color       string `json:"color" yaml:"color"`             // css color for the result header
	Description string `json:"description" yaml:"description"` // may carry sanitized inline markup
}

// PredictionResult is what the models said about one SoilSample.
type PredictionResult struct {
	Fertilizer  string    `json:"fertilizer"`
	RateKgHa    float64   `json:"rate_kg_ha"`
	Importances []float64 `json:"importances,omitempty"` // aligned to Feature order, nil when the classifier has none
}
