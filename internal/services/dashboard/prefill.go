package dashboard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
)

// SoilReadingSource returns the most recent reading of each soil parameter for a field.
// Parameters with no recent reading are absent from the map.
type SoilReadingSource interface {
	Latest(ctx context.Context, fieldID string) (map[entities.Feature]float64, error)
	State() string
}

var (
	fieldIDRe     = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)
	errBadFieldID = errors.New("field id must be 1-64 chars of letters, digits, '_', '.', ':' or '-'")
)

func (d *Dashboard) prefill(ctx context.Context, fieldID string, raw *advisor.RawSample) (int, error) {
	if !fieldIDRe.MatchString(fieldID) {
		return 0, errBadFieldID
	}
	vals, err := d.cfg.Prefill.Latest(ctx, fieldID)
	if err != nil {
		return 0, err
	}
	for f, v := range vals {
		raw[f] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return len(vals), nil
}

type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string        // default soil_reading
	Window      time.Duration // finestra di validità di una lettura, default 24h

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
}

// InfluxSource reads soil readings written as measurement,field_id=<id> moisture=..,ph=..
type InfluxSource struct {
	client  influxdb2.Client
	query   api.QueryAPI
	cfg     InfluxConfig
	breaker *gobreaker.CircuitBreaker
}

func NewInfluxSource(cfg InfluxConfig) *InfluxSource {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return newInfluxSource(client, cfg)
}

func newInfluxSource(client influxdb2.Client, cfg InfluxConfig) *InfluxSource {
	if cfg.Measurement == "" {
		cfg.Measurement = "soil_reading"
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	fails := cfg.BreakerFailures
	if fails < 1 {
		fails = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "influx-prefill",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
	return &InfluxSource{client: client, query: client.QueryAPI(cfg.Org), cfg: cfg, breaker: cb}
}

func (s *InfluxSource) Close() { s.client.Close() }

func (s *InfluxSource) State() string { return s.breaker.State().String() }

func buildFlux(bucket, measurement, fieldID string, window time.Duration) string {
	keys := make([]string, 0, entities.FeatureCount)
	for _, f := range entities.Features {
		keys = append(keys, strconv.Quote(f.Key))
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r.field_id == %q)
  |> filter(fn: (r) => contains(value: r._field, set: [%s]))
  |> last()
`, bucket, int(window.Minutes()), measurement, fieldID, strings.Join(keys, ", "))
}

func (s *InfluxSource) Latest(ctx context.Context, fieldID string) (map[entities.Feature]float64, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.run(ctx, fieldID)
	})
	if err != nil {
		return nil, err
	}
	return out.(map[entities.Feature]float64), nil
}

func (s *InfluxSource) run(ctx context.Context, fieldID string) (map[entities.Feature]float64, error) {
	res, err := s.query.Query(ctx, buildFlux(s.cfg.Bucket, s.cfg.Measurement, fieldID, s.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := make(map[entities.Feature]float64, entities.FeatureCount)
	for res.Next() {
		rec := res.Record()
		f, ok := entities.FeatureByKey(rec.Field())
		if !ok {
			continue
		}
		if v, ok := toFloat(rec.Value()); ok {
			out[f] = v
		}
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("influx result: %w", err)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
