package advisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
)

type fakeClassifier struct {
	code        int
	err         error
	panicWith   any
	importances []float64
	calls       atomic.Int32
}

func (f *fakeClassifier) Classify(_ context.Context, x []float64) (int, error) {
	f.calls.Add(1)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if len(x) != 7 {
		return 0, fmt.Errorf("want 7 features, got %d", len(x))
	}
	return f.code, f.err
}

func (f *fakeClassifier) FeatureImportances() []float64 { return f.importances }

func (f *fakeClassifier) Describe() string { return "Fake Forest" }

type fakeRegressor struct {
	rate  float64
	err   error
	calls atomic.Int32
}

func (f *fakeRegressor) Regress(context.Context, []float64) (float64, error) {
	f.calls.Add(1)
	return f.rate, f.err
}

type fakeEncoder struct{ classes []string }

func (f *fakeEncoder) Decode(_ context.Context, code int) (string, error) {
	if code < 0 || code >= len(f.classes) {
		return "", fmt.Errorf("y contains previously unseen labels: [%d]", code)
	}
	return f.classes[code], nil
}

var errBoom = errors.New("boom")

func fakeModels(code int, rate float64) (inference.Models, *fakeClassifier, *fakeRegressor) {
	c := &fakeClassifier{code: code}
	r := &fakeRegressor{rate: rate}
	return inference.Models{Classifier: c, Regressor: r, Encoder: &fakeEncoder{classes: []string{"DAP", "MOP", "Urea"}}}, c, r
}

func localModels(t *testing.T) inference.Models {
	t.Helper()
	dir := filepath.Join("inference", "testdata")
	m, err := inference.LoadLocal(inference.LocalPaths{
		Classifier:   filepath.Join(dir, "classification_model.json"),
		Regressor:    filepath.Join(dir, "regression_model.json"),
		LabelEncoder: filepath.Join(dir, "label_encoder.json"),
	})
	require.NoError(t, err)
	return m
}
