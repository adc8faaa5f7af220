package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/cache"
	"github.com/Domenick1991/claimjet/internal/gemini"
	"github.com/Domenick1991/claimjet/internal/service/flights"
	"github.com/Domenick1991/claimjet/internal/service/letter"
	"go.uber.org/zap"
)

// Services are the generation-backed use cases shared by the server and the
// CLI.
type Services struct {
	Flights *flights.FlightService
	Letters *letter.LetterService

	redis *cache.RedisCache
}

// NewServices connects to the generation service and, when configured, the
// flight status cache. A redis that does not answer a ping is skipped with a
// warning rather than failing startup.
func NewServices(ctx context.Context, log *zap.Logger, cfg *config.Config) (*Services, error) {
	client, err := gemini.New(ctx, cfg.GenAI, log)
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}

	s := &Services{}
	var opts []flights.FlightServiceOption
	if cfg.Redis.Enabled() {
		rc := cache.NewRedisCache(cfg.Redis)
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unavailable, flight status cache disabled", zap.Error(err))
			_ = rc.Close()
		} else {
			s.redis = rc
			opts = append(opts, flights.WithStatusCache(rc, cfg.GenAI.StatusCacheTTL))
		}
	}

	s.Flights = flights.NewFlightService(log, client, client, opts...)
	s.Letters = letter.NewLetterService(log, client.WithDraftTimeout(cfg.GenAI.DraftTimeout))
	return s, nil
}

func (s *Services) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
