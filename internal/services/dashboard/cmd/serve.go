package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/dashboard"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/rabbitmq"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard (HTTP, and gRPC when GRPC_PORT is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(st.v, st.configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("port", "", "http port (overrides PORT)")
	cmd.Flags().String("grpc-port", "", "grpc port (overrides GRPC_PORT)")
	_ = st.v.BindPFlag("PORT", cmd.Flags().Lookup("port"))
	_ = st.v.BindPFlag("GRPC_PORT", cmd.Flags().Lookup("grpc-port"))
	return cmd
}

func serve(ctx context.Context, cfg Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	adv, scoring, err := buildAdvisor(ctx, cfg, log, m)
	if err != nil {
		log.Error("cannot load models, not serving", zap.Error(err))
		return err
	}

	dcfg := dashboard.Config{
		Advisor:        adv,
		Gatherer:       reg,
		RequestTimeout: cfg.Timeout,
		Logger:         log,
	}
	if scoring != nil {
		dcfg.Scoring = scoring
	}
	if cfg.InfluxURL != "" {
		src := dashboard.NewInfluxSource(dashboard.InfluxConfig{
			URL:             cfg.InfluxURL,
			Token:           cfg.InfluxToken,
			Org:             cfg.InfluxOrg,
			Bucket:          cfg.InfluxBucket,
			Measurement:     cfg.Measurement,
			Window:          cfg.PrefillWindow,
			BreakerFailures: cfg.CBFails,
			BreakerOpenFor:  cfg.CBOpen,
			BreakerInterval: cfg.CBInterval,
		})
		defer src.Close()
		dcfg.Prefill = src
	}
	if cfg.MQTTEnabled {
		// broker irraggiungibile: si serve comunque, senza eventi
		client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg.Rabbit, log)
		if err != nil {
			log.Error("mqtt unavailable, recommendation events disabled", zap.Error(err))
		} else {
			defer rabbitmq.CloseRabbitMQConn(client, log)
			dcfg.Notifier = dashboard.NewNotifier(client, dashboard.NotifierConfig{
				TopicTemplate: cfg.TopicTemplate,
				QoS:           1,
				DedupTTL:      cfg.DedupTTL,
				Metrics:       m,
				Logger:        log,
			})
		}
	}

	d, err := dashboard.New(dcfg)
	if err != nil {
		return err
	}

	// listener aperti prima di avviare qualsiasi goroutine
	httpLis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	var grpcLis net.Listener
	if cfg.GRPCPort != "" {
		if grpcLis, err = net.Listen("tcp", ":"+cfg.GRPCPort); err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	hs := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", httpLis.Addr().String()))
		if err := hs.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		d.SetReady(false)
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return hs.Shutdown(sctx)
	})

	if dcfg.Notifier != nil {
		g.Go(func() error { return dcfg.Notifier.Run(gctx) })
	}

	if grpcLis != nil {
		gs, health := d.NewGRPCServer()
		g.Go(func() error {
			log.Info("grpc listening", zap.String("addr", grpcLis.Addr().String()))
			if err := gs.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			health.Shutdown()
			gs.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}
