package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

// RemoteConfig configures the HTTP scoring backend.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration // per call

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	StartupMaxElapsed time.Duration // budget for the /healthz probe at startup

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Remote talks to a scoring service that keeps the fitted models in their own runtime.
type Remote struct {
	base        string
	client      *http.Client
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
	log         *zap.Logger
	health      remoteHealth
	importances []float64
}

type remoteHealth struct {
	Status     string `json:"status"`
	Classifier string `json:"classifier"`
	Regressor  string `json:"regressor"`
}

// errNotFound: endpoint opzionale assente, non deve far scattare il breaker
var errNotFound = errors.New("not found")

// ConnectRemote probes /healthz with exponential backoff and fetches the feature
// importances once. An error here means the models are not available.
func ConnectRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("model service url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	log := logger.OrNop(cfg.Logger)

	fails := cfg.BreakerFailures
	if fails < 1 {
		fails = 5
	}
	r := &Remote{
		base:    base,
		client:  client,
		timeout: cfg.Timeout,
		log:     log,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "model-service",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.StartupMaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}
	err := backoff.Retry(func() error {
		var h remoteHealth
		if err := r.do(ctx, http.MethodGet, "/healthz", nil, &h); err != nil {
			log.Warn("model service not ready", zap.String("url", base), zap.Error(err))
			return err
		}
		r.health = h
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("model service %s unreachable: %w", base, err)
	}

	var fi struct {
		Importances []float64 `json:"importances"`
	}
	switch err := r.do(ctx, http.MethodGet, "/feature-importances", nil, &fi); {
	case err == nil:
		r.importances = fi.Importances
	case errors.Is(err, errNotFound):
		log.Info("model service exposes no feature importances")
	default:
		return nil, fmt.Errorf("fetch feature importances: %w", err)
	}

	log.Info("connected to model service", zap.String("url", base),
		zap.String("classifier", r.health.Classifier), zap.String("regressor", r.health.Regressor))
	return r, nil
}

// Models exposes the remote service through the three model contracts.
func (r *Remote) Models() Models {
	return Models{
		Classifier: remoteClassifier{r},
		Regressor:  remoteRegressor{r},
		Encoder:    remoteEncoder{r},
	}
}

// State stato del breaker verso il servizio modelli (closed, half-open, open)
func (r *Remote) State() string { return r.breaker.State().String() }

func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("model service unavailable: %w", err)
	}
	return err
}

func (r *Remote) roundTrip(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, errNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

type featuresRequest struct {
	Features []float64 `json:"features"`
}

type remoteClassifier struct{ r *Remote }

func (c remoteClassifier) Classify(ctx context.Context, x []float64) (int, error) {
	var out struct {
		Label *int `json:"label"`
	}
	if err := c.r.do(ctx, http.MethodPost, "/classify", featuresRequest{x}, &out); err != nil {
		return 0, err
	}
	if out.Label == nil {
		return 0, fmt.Errorf("classify: response has no label")
	}
	return *out.Label, nil
}

func (c remoteClassifier) FeatureImportances() []float64 {
	if len(c.r.importances) == 0 {
		return nil
	}
	return append([]float64(nil), c.r.importances...)
}

func (c remoteClassifier) Describe() string { return c.r.health.Classifier }

type remoteRegressor struct{ r *Remote }

func (g remoteRegressor) Regress(ctx context.Context, x []float64) (float64, error) {
	var out struct {
		Value *float64 `json:"value"`
	}
	if err := g.r.do(ctx, http.MethodPost, "/regress", featuresRequest{x}, &out); err != nil {
		return 0, err
	}
	if out.Value == nil {
		return 0, fmt.Errorf("regress: response has no value")
	}
	return *out.Value, nil
}

func (g remoteRegressor) Describe() string { return g.r.health.Regressor }

type remoteEncoder struct{ r *Remote }

func (e remoteEncoder) Decode(ctx context.Context, code int) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := e.r.do(ctx, http.MethodPost, "/decode", map[string]int{"label": code}, &out); err != nil {
		return "", err
	}
	if out.Name == "" {
		return "", fmt.Errorf("decode: empty name for label %d", code)
	}
	return out.Name, nil
}
