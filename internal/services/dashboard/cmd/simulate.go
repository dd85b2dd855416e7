package main

import (
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	soilsim "github.com/LeonardoBeccarini/fertilizer_advisor/internal/soil-simulator"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
)

// simulate feeds InfluxDB with readings for one field so that GET /?field= has something to prefill.
func newSimulateCmd(st *cliState) *cobra.Command {
	var (
		fieldID       string
		interval      time.Duration
		halfLife      time.Duration
		seed          int64
		irrigateBelow float64
		irrigateBy    float64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write simulated soil readings for a field to InfluxDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			cfg, err := loadConfig(st.v, st.configFile)
			if err != nil {
				return err
			}
			if cfg.InfluxURL == "" {
				return errors.New("simulate needs INFLUX_URL")
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			start, err := advisor.ParseSample(advisor.DefaultRawSample())
			if err != nil {
				return err
			}

			client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
				influxdb2.DefaultOptions().SetBatchSize(10).SetFlushInterval(1000))
			defer client.Close()
			w := soilsim.NewWriter(client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), cfg.Measurement, log)

			gen := soilsim.NewDataGenerator(start, halfLife, seed)
			log.Info("simulating soil readings",
				zap.String("field_id", fieldID), zap.Duration("interval", interval), zap.String("bucket", cfg.InfluxBucket))
			sim := soilsim.NewSoilSimulator(fieldID, gen, w, log).IrrigateBelow(irrigateBelow, irrigateBy)
			if err := sim.Start(cmd.Context(), interval); err != nil {
				return err
			}
			fields := []zap.Field{zap.Int64("written", w.Written())}
			if age := w.LastErrorAge(); age >= 0 {
				fields = append(fields, zap.Duration("last_write_error_ago", age))
			}
			log.Info("simulation stopped", fields...)
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldID, "field-id", "field1", "field identifier (tag field_id)")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "time between readings")
	cmd.Flags().DurationVar(&halfLife, "moisture-half-life", 2*time.Hour, "time for moisture to halve without water")
	cmd.Flags().Float64Var(&irrigateBelow, "irrigate-below", 15, "irrigate when moisture drops under this percentage (0 disables)")
	cmd.Flags().Float64Var(&irrigateBy, "irrigate-amount", 20, "moisture percentage points added per irrigation")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	return cmd
}
