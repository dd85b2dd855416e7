// Package advisor turns seven raw soil readings into a fertilizer recommendation:
// parse, run the models, and shape the result for display.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
)

// Advisor is safe for concurrent use: everything it holds is read-only.
type Advisor struct {
	models  inference.Models
	catalog *Catalog
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Advisor)

func WithCatalog(c *Catalog) Option { return func(a *Advisor) { a.catalog = c } }

func WithLogger(l *zap.Logger) Option { return func(a *Advisor) { a.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Advisor) { a.metrics = m } }

func New(models inference.Models, opts ...Option) (*Advisor, error) {
	if models.Classifier == nil || models.Regressor == nil || models.Encoder == nil {
		return nil, errors.New("advisor needs a classifier, a regressor and a label encoder")
	}
	a := &Advisor{models: models, catalog: DefaultCatalog(), log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	if a.catalog == nil {
		a.catalog = DefaultCatalog()
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a, nil
}

// Recommend validates raw and runs the models on it.
func (a *Advisor) Recommend(ctx context.Context, raw RawSample) (*Recommendation, error) {
	sample, err := ParseSample(raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			a.log.Warn("rejected soil sample", zap.Stringer("field", ve.Field), zap.String("value", ve.Value))
		}
		a.metrics.ObserveRecommendation(metrics.OutcomeValidationError, 0, "")
		return nil, err
	}
	return a.RecommendSample(ctx, sample)
}

// RecommendSample skips parsing, for callers that already hold numbers.
func (a *Advisor) RecommendSample(ctx context.Context, sample entities.SoilSample) (*Recommendation, error) {
	start := time.Now()
	res, err := predict(ctx, a.models, sample)
	took := time.Since(start)
	if err != nil {
		a.log.Error("inference failed", zap.Error(err), zap.Any("sample", sample), zap.Duration("took", took))
		a.metrics.ObserveRecommendation(metrics.OutcomeInferenceError, took, "")
		return nil, err
	}
	if len(res.Importances) != 0 && len(res.Importances) != entities.FeatureCount {
		a.log.Warn("ignoring feature importances of unexpected length", zap.Int("len", len(res.Importances)))
	}
	a.metrics.ObserveRecommendation(metrics.OutcomeOK, took, a.fertilizerLabel(res.Fertilizer))
	a.log.Debug("recommendation",
		zap.String("fertilizer", res.Fertilizer), zap.Float64("rate_kg_ha", res.RateKgHa), zap.Duration("took", took))
	return Present(res, sample, a.catalog), nil
}

// fertilizerLabel keeps the metric label set bounded by the catalog.
func (a *Advisor) fertilizerLabel(name string) string {
	if a.catalog.Has(name) {
		return name
	}
	return metrics.OtherFertilizer
}

// ModelInfo names the loaded models for the sidebar.
type ModelInfo struct {
	Classifier string `json:"classifier"`
	Regressor  string `json:"regressor"`
}

func (a *Advisor) ModelInfo() ModelInfo {
	return ModelInfo{
		Classifier: inference.Describe(a.models.Classifier, "unknown"),
		Regressor:  inference.Describe(a.models.Regressor, "unknown"),
	}
}

func (m ModelInfo) String() string {
	return fmt.Sprintf("classifier=%s regressor=%s", m.Classifier, m.Regressor)
}
