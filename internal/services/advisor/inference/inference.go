// Package inference holds the model contracts the advisor calls and the two
// backends implementing them: tree ensembles exported to JSON and loaded in
// process, and a remote scoring service reached over HTTP.
package inference

import "context"

// Classifier maps a feature vector to an encoded class label.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (int, error)
}

// Regressor maps a feature vector to a continuous value.
type Regressor interface {
	Regress(ctx context.Context, features []float64) (float64, error)
}

// LabelEncoder turns the classifier's codes back into class names.
type LabelEncoder interface {
	Decode(ctx context.Context, code int) (string, error)
}

// ClassLister is implemented by encoders that know all their classes up front.
type ClassLister interface {
	Classes() []string
}

// FeatureImportancer is implemented by classifiers that expose per-feature weights.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// Describer gives a human name for a model ("Random Forest").
type Describer interface {
	Describe() string
}

// Models is the read-only set loaded once at startup and shared by every request.
type Models struct {
	Classifier Classifier
	Regressor  Regressor
	Encoder    LabelEncoder
}

// Describe returns the model's Describer name or fallback.
func Describe(m any, fallback string) string {
	if d, ok := m.(Describer); ok && d.Describe() != "" {
		return d.Describe()
	}
	return fallback
}
