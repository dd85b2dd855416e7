// Package soil_simulator produces soil readings for a field and writes them to
// InfluxDB, where the dashboard picks them up to prefill its form.
package soil_simulator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

type ReadingWriter interface {
	Write(fieldID string, s entities.SoilSample, ts time.Time)
	Flush()
}

type SoilSimulator struct {
	fieldID   string
	generator *DataGenerator
	writer    ReadingWriter
	log       *zap.Logger

	irrigateBelow float64
	irrigateBy    float64
}

func NewSoilSimulator(fieldID string, gen *DataGenerator, w ReadingWriter, log *zap.Logger) *SoilSimulator {
	return &SoilSimulator{fieldID: fieldID, generator: gen, writer: w, log: logger.OrNop(log)}
}

// IrrigateBelow waters the field by points whenever a reading shows moisture under threshold.
// A threshold <= 0 turns irrigation off.
func (s *SoilSimulator) IrrigateBelow(threshold, points float64) *SoilSimulator {
	s.irrigateBelow, s.irrigateBy = threshold, points
	return s
}

// Start writes one reading per interval until ctx is done, then flushes.
func (s *SoilSimulator) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("simulation interval must be positive")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	defer s.writer.Flush()

	s.tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick()
		}
	}
}

func (s *SoilSimulator) tick() {
	sd := s.generator.Next()
	s.writer.Write(s.fieldID, sd, time.Now().UTC())
	s.log.Debug("soil reading",
		zap.String("field_id", s.fieldID),
		zap.Float64("moisture", sd.Moisture),
		zap.Float64("ph", sd.PH),
		zap.Float64("n", sd.Nitrogen),
	)
	if s.irrigateBelow > 0 && sd.Moisture < s.irrigateBelow {
		s.generator.Irrigate(s.irrigateBy)
		s.log.Info("simulated irrigation",
			zap.String("field_id", s.fieldID), zap.Float64("moisture", sd.Moisture), zap.Float64("added", s.irrigateBy))
	}
}
