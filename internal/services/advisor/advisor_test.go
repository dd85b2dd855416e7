package advisor

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
)

var rateRe = regexp.MustCompile(`^-?\d+\.\d kg/ha$`)

func TestNew_RequiresAllModels(t *testing.T) {
	m, _, _ := fakeModels(0, 1)
	m.Encoder = nil
	_, err := New(m)
	assert.Error(t, err)
}

func TestRecommend_Defaults(t *testing.T) {
	a, err := New(localModels(t))
	require.NoError(t, err)

	rec, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	assert.Equal(t, "MOP", rec.Fertilizer)
	assert.Equal(t, "84.1 kg/ha", rec.RateText)
	assert.Regexp(t, rateRe, rec.RateText)
	assert.Equal(t, "#f39c12", rec.Color)
	assert.NotEmpty(t, rec.Description)
	require.Len(t, rec.Importances, entities.FeatureCount)
	assert.Equal(t, "Moisture", rec.Importances[0].Feature)
	assert.Equal(t, "K", rec.Importances[6].Feature)
	require.Len(t, rec.Summary, entities.FeatureCount)
	assert.Equal(t, 6.5, rec.Summary[entities.PH].Value)
}

func TestRecommend_LocalModelCases(t *testing.T) {
	a, err := New(localModels(t))
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      RawSample
		wantName string
		wantRate string
	}{
		{"low nitrogen", RawSample{"30.0", "25.0", "300", "6.5", "20", "50", "50"}, "Urea", "104.0 kg/ha"},
		{"low phosphorus", RawSample{"30.0", "25.0", "300", "6.5", "50", "20", "80"}, "DAP", "75.1 kg/ha"},
		{"dry soil", RawSample{"20", "25.0", "300", "6.5", "50", "50", "50"}, "MOP", "91.8 kg/ha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := a.Recommend(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rec.Fertilizer)
			assert.Equal(t, tt.wantRate, rec.RateText)
		})
	}
}

func TestRecommend_NonNumericInput(t *testing.T) {
	m, c, r := fakeModels(0, 10)
	a, err := New(m)
	require.NoError(t, err)

	raw := DefaultRawSample()
	raw[entities.Temperature] = "abc"
	rec, err := a.Recommend(context.Background(), raw)
	assert.Nil(t, rec)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, entities.Temperature, ve.Field)
	assert.Equal(t, "Please enter valid numbers in all fields", UserMessage(err))
	assert.Zero(t, c.calls.Load(), "models must not run on invalid input")
	assert.Zero(t, r.calls.Load())
}

func TestRecommend_Idempotent(t *testing.T) {
	a, err := New(localModels(t))
	require.NoError(t, err)

	first, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.Recommend(context.Background(), DefaultRawSample())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRecommend_Concurrent(t *testing.T) {
	a, err := New(localModels(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := a.Recommend(context.Background(), DefaultRawSample())
			if assert.NoError(t, err) {
				assert.Equal(t, "MOP", rec.Fertilizer)
			}
		}()
	}
	wg.Wait()
}

func TestRecommend_ImportancesInFeatureOrder(t *testing.T) {
	m, c, _ := fakeModels(1, 42)
	c.importances = []float64{0.1, 0.05, 0.2, 0.15, 0.2, 0.1, 0.2}
	a, err := New(m)
	require.NoError(t, err)

	rec, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	want := []FeatureWeight{
		{"Moisture", 0.1}, {"Temperature", 0.05}, {"EC", 0.2}, {"pH", 0.15},
		{"N", 0.2}, {"P", 0.1}, {"K", 0.2},
	}
	assert.Equal(t, want, rec.Importances)
}

func TestRecommend_WrongImportanceLengthIsDropped(t *testing.T) {
	m, c, _ := fakeModels(1, 42)
	c.importances = []float64{0.5, 0.5}
	a, err := New(m)
	require.NoError(t, err)

	rec, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	assert.Nil(t, rec.Importances)
}

func TestRecommend_InferenceFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(c *fakeClassifier, r *fakeRegressor)
		wantStage string
		wantMsg   string
	}{
		{
			name:      "classifier error",
			setup:     func(c *fakeClassifier, _ *fakeRegressor) { c.err = errBoom },
			wantStage: "classify",
			wantMsg:   "An error occurred: boom",
		},
		{
			name:      "regressor error",
			setup:     func(_ *fakeClassifier, r *fakeRegressor) { r.err = errBoom },
			wantStage: "regress",
			wantMsg:   "An error occurred: boom",
		},
		{
			name:      "unseen label",
			setup:     func(c *fakeClassifier, _ *fakeRegressor) { c.code = 9 },
			wantStage: "decode",
			wantMsg:   "An error occurred: y contains previously unseen labels: [9]",
		},
		{
			name:      "classifier panic",
			setup:     func(c *fakeClassifier, _ *fakeRegressor) { c.panicWith = "index out of range" },
			wantStage: "classify",
			wantMsg:   "An error occurred: index out of range",
		},
		{
			name:      "non finite rate",
			setup:     func(_ *fakeClassifier, r *fakeRegressor) { r.rate = math.NaN() },
			wantStage: "regress",
			wantMsg:   "An error occurred: application rate is not finite",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c, r := fakeModels(0, 10)
			tt.setup(c, r)
			a, err := New(m)
			require.NoError(t, err)

			rec, err := a.Recommend(context.Background(), DefaultRawSample())
			assert.Nil(t, rec)
			var ie *InferenceError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.wantStage, ie.Stage)
			assert.Equal(t, tt.wantMsg, UserMessage(err))
		})
	}
}

func TestRecommend_UnknownFertilizerGetsDefaults(t *testing.T) {
	m := inference.Models{
		Classifier: &fakeClassifier{code: 0},
		Regressor:  &fakeRegressor{rate: 12.34},
		Encoder:    &fakeEncoder{classes: []string{"Compost"}},
	}
	a, err := New(m)
	require.NoError(t, err)

	rec, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	assert.Equal(t, "Compost", rec.Fertilizer)
	assert.Equal(t, DefaultColor, rec.Color)
	assert.Empty(t, rec.Description)
	assert.Equal(t, "12.3 kg/ha", rec.RateText)
}

func TestRecommend_CustomCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte("fertilizers:\n  - name: MOP\n    color: \"#000000\"\n    description: potash\n"))
	require.NoError(t, err)
	m, _, _ := fakeModels(1, 5)
	a, err := New(m, WithCatalog(cat))
	require.NoError(t, err)

	rec, err := a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	assert.Equal(t, "#000000", rec.Color)
	assert.Equal(t, "potash", rec.Description)
}

func TestRecommend_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	m, _, _ := fakeModels(2, 80)
	a, err := New(m, WithMetrics(mt))
	require.NoError(t, err)

	_, err = a.Recommend(context.Background(), DefaultRawSample())
	require.NoError(t, err)
	bad := DefaultRawSample()
	bad[0] = ""
	_, err = a.Recommend(context.Background(), bad)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Recommendations.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Recommendations.WithLabelValues(metrics.OutcomeValidationError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Predicted.WithLabelValues("Urea")))
}

func TestRecommend_MetricsBucketUnknownFertilizers(t *testing.T) {
	mt := metrics.New(prometheus.NewRegistry())
	enc := &fakeEncoder{classes: []string{"Compost-1", "Compost-2", "Urea"}}
	for code := range enc.classes {
		m := inference.Models{Classifier: &fakeClassifier{code: code}, Regressor: &fakeRegressor{rate: 10}, Encoder: enc}
		a, err := New(m, WithMetrics(mt))
		require.NoError(t, err)
		rec, err := a.Recommend(context.Background(), DefaultRawSample())
		require.NoError(t, err)
		assert.Equal(t, enc.classes[code], rec.Fertilizer, "the user still sees the decoded name")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(mt.Predicted.WithLabelValues(metrics.OtherFertilizer)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Predicted.WithLabelValues("Urea")))
	assert.Equal(t, 2, testutil.CollectAndCount(mt.Predicted))
}

func TestModelInfo(t *testing.T) {
	m, _, _ := fakeModels(0, 1)
	a, err := New(m)
	require.NoError(t, err)
	info := a.ModelInfo()
	assert.Equal(t, "Fake Forest", info.Classifier)
	assert.Equal(t, "unknown", info.Regressor)

	a, err = New(localModels(t))
	require.NoError(t, err)
	assert.NotEqual(t, "unknown", a.ModelInfo().Regressor)
}
