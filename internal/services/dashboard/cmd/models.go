package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
)

// loadModels also returns the remote client when MODEL_BACKEND=remote, so its breaker can be reported.
func loadModels(ctx context.Context, cfg Config, log *zap.Logger) (inference.Models, *inference.Remote, error) {
	switch cfg.ModelBackend {
	case "remote":
		r, err := inference.ConnectRemote(ctx, inference.RemoteConfig{
			BaseURL:         cfg.ModelServiceURL,
			Timeout:         cfg.Timeout,
			BreakerFailures: cfg.CBFails,
			BreakerOpenFor:  cfg.CBOpen,
			BreakerInterval: cfg.CBInterval,
			Logger:          log,
		})
		if err != nil {
			return inference.Models{}, nil, fmt.Errorf("connect model service: %w", err)
		}
		return r.Models(), r, nil
	default:
		m, err := inference.LoadLocal(inference.LocalPaths{
			Classifier:   cfg.ClassifierPath,
			Regressor:    cfg.RegressorPath,
			LabelEncoder: cfg.LabelEncoderPath,
		})
		return m, nil, err
	}
}

// buildAdvisor loads models and catalog. Failing here means nothing may be served.
func buildAdvisor(ctx context.Context, cfg Config, log *zap.Logger, m *metrics.Metrics) (*advisor.Advisor, *inference.Remote, error) {
	models, remote, err := loadModels(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	catalog := advisor.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = advisor.LoadCatalog(cfg.CatalogPath); err != nil {
			return nil, nil, err
		}
	}
	if cl, ok := models.Encoder.(inference.ClassLister); ok {
		if missing := catalog.Missing(cl.Classes()); len(missing) > 0 {
			log.Warn("classes without a catalog entry are shown with the default color", zap.Strings("classes", missing))
		}
	}
	a, err := advisor.New(models, advisor.WithCatalog(catalog), advisor.WithLogger(log), advisor.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	log.Info("models loaded",
		zap.String("backend", cfg.ModelBackend),
		zap.Stringer("models", a.ModelInfo()),
		zap.Int("catalog_entries", catalog.Len()),
	)
	return a, remote, nil
}
