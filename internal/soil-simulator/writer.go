package soil_simulator

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

// Writer wraps the non-blocking WriteAPI and remembers when the last async error happened.
type Writer struct {
	api         api.WriteAPI
	measurement string
	log         *zap.Logger

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewWriter(w api.WriteAPI, measurement string, log *zap.Logger) *Writer {
	if measurement == "" {
		measurement = "soil_reading"
	}
	ww := &Writer{
		api:         w,
		measurement: measurement,
		log:         logger.OrNop(log),
	}
	go func() {
		for err := range w.Errors() {
			ww.mu.Lock()
			ww.lastErr = time.Now()
			ww.mu.Unlock()
			ww.log.Warn("influx write error", zap.Error(err))
		}
	}()
	return ww
}

// Point builds the line the dashboard prefill reads back:
// soil_reading,field_id=<id> moisture=..,temperature=..,ec=..,ph=..,n=..,p=..,k=..
func Point(measurement, fieldID string, s entities.SoilSample, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, entities.FeatureCount)
	for i, v := range s.Values() {
		fields[entities.Features[i].Key] = v
	}
	return write.NewPoint(measurement, map[string]string{"field_id": fieldID}, fields, ts)
}

func (w *Writer) Write(fieldID string, s entities.SoilSample, ts time.Time) {
	w.api.WritePoint(Point(w.measurement, fieldID, s, ts))
	w.mu.Lock()
	w.written++
	w.mu.Unlock()
}

// LastErrorAge is how long ago the last write error was seen, or -1 if never.
func (w *Writer) LastErrorAge() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.lastErr.IsZero() {
		return -1
	}
	return time.Since(w.lastErr)
}

func (w *Writer) Written() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

func (w *Writer) Flush() { w.api.Flush() }
