package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/bootstrap"
	"github.com/Domenick1991/claimjet/internal/email"
	"github.com/Domenick1991/claimjet/internal/kafka"
	"github.com/Domenick1991/claimjet/internal/logger"
	"github.com/Domenick1991/claimjet/internal/service/claims"
	"github.com/Domenick1991/claimjet/internal/tracing"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("claimjet-api", cfg.Tracing.Collector)
		if err != nil {
			log.Fatal("failed to init tracer", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
				log.Warn("failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	redacted := cfg.Redacted()
	log.Info("claimjet starting",
		zap.String("env", redacted.Env),
		zap.String("http_addr", redacted.HTTP.Address),
		zap.String("grpc_addr", redacted.GRPC.Address),
		zap.String("model", redacted.GenAI.Model),
		zap.Bool("redis", redacted.Redis.Enabled()),
		zap.Bool("kafka", redacted.Kafka.Enabled()),
	)

	services, err := bootstrap.NewServices(ctx, log, cfg)
	if err != nil {
		log.Fatal("failed to create services", zap.Error(err))
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Warn("failed to close services", zap.Error(err))
		}
	}()

	opts := []claims.ClaimsServiceOption{
		claims.WithIdleTTL(cfg.Session.IdleTTL),
		claims.WithServiceFee(cfg.Pricing.ServiceFeeCents),
		claims.WithLetterSender(email.NewSender(log, email.NewLogTransport(log))),
	}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka not reachable at startup", zap.Error(err))
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("failed to close kafka producer", zap.Error(err))
			}
		}()
		opts = append(opts, claims.WithProducer(producer, cfg.Kafka.EventsTopic))
	}

	claimsService := claims.NewClaimsService(log, services.Flights, services.Letters, opts...)
	defer claimsService.Close()

	go sweepIdle(ctx, log, claimsService, cfg.Worker.SweepInterval)

	if err := bootstrap.Run(ctx, log, cfg, services.Flights, claimsService); err != nil {
		log.Error("server error", zap.Error(err))
	}
}

func sweepIdle(ctx context.Context, log *zap.Logger, svc *claims.ClaimsService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpireIdle(ctx); err != nil {
				log.Warn("expire idle sessions", zap.Error(err))
			}
		}
	}
}
