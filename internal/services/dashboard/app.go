// Package dashboard serves the advisor over HTTP: the single page form, a JSON
// endpoint, health probes and Prometheus metrics.
package dashboard

import (
	"errors"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

// BreakerReporter exposes a dependency's circuit breaker state ("closed", "half-open", "open").
type BreakerReporter interface {
	State() string
}

type Config struct {
	Advisor *advisor.Advisor

	// opzionali
	Scoring  BreakerReporter // remote model service
	Prefill  SoilReadingSource
	Notifier *Notifier
	Gatherer prometheus.Gatherer

	RequestTimeout time.Duration
	Logger         *zap.Logger
}

type Dashboard struct {
	cfg   Config
	log   *zap.Logger
	page  *template.Template
	ready atomic.Bool
}

func New(cfg Config) (*Dashboard, error) {
	if cfg.Advisor == nil {
		return nil, errors.New("dashboard needs an advisor")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	d := &Dashboard{cfg: cfg, log: logger.OrNop(cfg.Logger), page: page}
	d.ready.Store(true)
	return d, nil
}

// SetReady flips /readyz, used while draining on shutdown.
func (d *Dashboard) SetReady(ok bool) { d.ready.Store(ok) }

func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handlePage)
	mux.HandleFunc("/api/recommend", d.handleAPI)
	mux.Handle("/healthz", newHealthHandler(d))
	mux.Handle("/readyz", newReadyHandler(d))
	if d.cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return d.accessLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (d *Dashboard) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
			return
		}
		d.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
