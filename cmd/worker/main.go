package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/kafka"
	"github.com/Domenick1991/claimjet/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	if !cfg.Kafka.Enabled() || cfg.Kafka.EventsTopic == "" {
		log.Fatal("worker needs kafka brokers and an events topic")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventsTopic, log)
	defer consumer.Close()

	log.Info("worker started", zap.String("topic", cfg.Kafka.EventsTopic), zap.String("group_id", cfg.Kafka.GroupID))

	err = consumer.Consume(ctx, kafka.EventHandler(log, auditEvent(log)))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}

// auditEvent records the claim funnel. Events carry no passenger data.
func auditEvent(log *zap.Logger) func(context.Context, kafka.ClaimEvent) error {
	return func(_ context.Context, event kafka.ClaimEvent) error {
		log.Info("claim event",
			zap.String("type", event.Type),
			zap.String("session_id", event.SessionID),
			zap.String("step", event.Step),
			zap.Bool("eligible", event.Eligible),
			zap.Int("amount", event.Amount),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}
