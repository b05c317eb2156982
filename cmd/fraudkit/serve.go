package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rushteam/fraudkit/audit"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pkg/logx"
	"github.com/rushteam/fraudkit/scoring"
	"github.com/rushteam/fraudkit/server"
	"github.com/rushteam/fraudkit/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /predict with the persisted artifacts",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, app.StoreOptions())
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := newRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	svc, err := loadService(ctx, s, rec, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	threshold, _ := svc.Threshold()
	logger.Info().Float64("threshold", threshold).Str("backend", app.ModelBackend).Msg("artifacts loaded")

	srv := server.New(svc, server.Options{
		Logger:       logger,
		RateLimitRPS: float64(app.RateLimitRPS),
		Release:      app.IsProduction(),
	})
	return srv.Run(ctx, ":"+app.Port)
}

func loadService(ctx context.Context, s core.Store, rec audit.Recorder, reg prometheus.Registerer) (*scoring.Service, error) {
	svc := scoring.New(s, app.ScoringConfig(),
		scoring.WithLogger(logx.Component(logger, "scoring")),
		scoring.WithRegisterer(reg),
		scoring.WithRecorder(rec),
	)
	if err := svc.Load(ctx); err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	return svc, nil
}

// newRecorder 配置了 KAFKA_BROKERS 时把决策写入 Kafka，否则丢弃
func newRecorder() (audit.Recorder, error) {
	if len(app.KafkaBrokers) == 0 {
		return audit.Nop{}, nil
	}
	return audit.NewKafkaRecorder(audit.KafkaRecorderConfig{
		Brokers:       app.KafkaBrokers,
		Topic:         app.AuditTopic,
		BatchSize:     200,
		FlushInterval: 2 * time.Second,
		CloseTimeout:  5 * time.Second,
		ClientID:      "fraudkit",
		Logger:        logx.Component(logger, "audit"),
	})
}
