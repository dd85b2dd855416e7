package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
)

func inferenceModelsOf(t *testing.T) inference.Models {
	t.Helper()
	dir := filepath.Join("..", "advisor", "inference", "testdata")
	m, err := inference.LoadLocal(inference.LocalPaths{
		Classifier:   filepath.Join(dir, "classification_model.json"),
		Regressor:    filepath.Join(dir, "regression_model.json"),
		LabelEncoder: filepath.Join(dir, "label_encoder.json"),
	})
	require.NoError(t, err)
	return m
}

func testAdvisor(t *testing.T) *advisor.Advisor {
	t.Helper()
	a, err := advisor.New(inferenceModelsOf(t))
	require.NoError(t, err)
	return a
}

func testDashboard(t *testing.T, mutate func(*Config)) *Dashboard {
	t.Helper()
	cfg := Config{Advisor: testAdvisor(t)}
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

type fakeSource struct {
	mu    sync.Mutex
	vals  map[entities.Feature]float64
	err   error
	state string
	asked []string
}

func (f *fakeSource) Latest(_ context.Context, fieldID string) (map[entities.Feature]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, fieldID)
	return f.vals, f.err
}

func (f *fakeSource) State() string {
	if f.state == "" {
		return "closed"
	}
	return f.state
}

var errInfluxDown = errors.New("influx down")
