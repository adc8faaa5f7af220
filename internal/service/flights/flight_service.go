package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FallbackAirline marks a record produced because the status check failed.
const FallbackAirline = "Check Failed (Simulated)"

type FlightUseCase interface {
	Resolve(ctx context.Context, flightNumber, date string) domain.FlightRecord
}

// StatusCache keeps successfully resolved records for a short while so
// repeated checks of the same flight do not hit the generation service.
type StatusCache interface {
	GetStatus(ctx context.Context, flightNumber, date string) (domain.FlightRecord, error)
	SetStatus(ctx context.Context, record domain.FlightRecord, ttl time.Duration) error
}

type FlightService struct {
	log       *zap.Logger
	searcher  llm.GroundedQuerier
	extractor llm.StructuredExtractor
	cache     StatusCache
	cacheTTL  time.Duration
	group     singleflight.Group
}

type FlightServiceOption func(*FlightService)

func WithStatusCache(cache StatusCache, ttl time.Duration) FlightServiceOption {
	return func(s *FlightService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func NewFlightService(log *zap.Logger, searcher llm.GroundedQuerier, extractor llm.StructuredExtractor, opts ...FlightServiceOption) *FlightService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FlightService{
		log:       log,
		searcher:  searcher,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve looks up the flight and never fails: any error in either phase, or
// an unparseable extraction, yields FallbackRecord.
func (s *FlightService) Resolve(ctx context.Context, flightNumber, date string) domain.FlightRecord {
	flightNumber = strings.ToUpper(strings.TrimSpace(flightNumber))

	logger := s.log.With(
		zap.String("op", "flights.Resolve"),
		zap.String("flight_number", flightNumber),
		zap.String("date", date),
	)

	if s.cache != nil && s.cacheTTL > 0 {
		cached, err := s.cache.GetStatus(ctx, flightNumber, date)
		if err == nil {
			logger.Info("flight status cache hit")
			return cached
		}
		if !errors.Is(err, domain.ErrNotCached) {
			logger.Warn("flight status cache read failed", zap.Error(err))
		}
	}

	// The shared lookup must not inherit one caller's cancellation; each
	// caller stops waiting on its own ctx instead.
	ch := s.group.DoChan(flightNumber+"|"+date, func() (interface{}, error) {
		return s.lookup(context.WithoutCancel(ctx), logger, flightNumber, date), nil
	})

	var record domain.FlightRecord
	select {
	case <-ctx.Done():
		logger.Warn("flight status lookup abandoned", zap.Error(ctx.Err()))
		return FallbackRecord(flightNumber, date)
	case res := <-ch:
		record = res.Val.(domain.FlightRecord)
	}

	if !record.LookupFailed && s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetStatus(ctx, record, s.cacheTTL); err != nil {
			logger.Warn("flight status cache write failed", zap.Error(err))
		}
	}
	return record
}

func (s *FlightService) lookup(ctx context.Context, logger *zap.Logger, flightNumber, date string) domain.FlightRecord {
	const op = "flights.lookup"
	ctx, span := otel.Tracer("claimjet/flights").Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("flight.number", flightNumber),
		attribute.String("flight.date", date),
	)

	start := time.Now()
	found, err := s.searcher.GroundedQuery(ctx, searchPrompt(flightNumber, date))
	if err != nil {
		logger.Error("flight status search failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "search failed")
		return FallbackRecord(flightNumber, date)
	}
	span.AddEvent("flight.search.done")

	raw, err := s.extractor.ExtractJSON(ctx, extractPrompt(found.Text), FlightSchema)
	if err != nil {
		logger.Error("flight status extraction failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "extraction failed")
		return FallbackRecord(flightNumber, date)
	}

	record, err := normalize(raw, flightNumber, date)
	if err != nil {
		logger.Error("flight status payload rejected", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "bad payload")
		return FallbackRecord(flightNumber, date)
	}

	span.SetAttributes(attribute.String("flight.status", string(record.Status)))
	span.SetStatus(otelcodes.Ok, "ok")
	logger.Info("flight status resolved",
		zap.String("status", string(record.Status)),
		zap.Int("delay_minutes", record.DelayDurationMinutes),
		zap.Int("distance_km", record.DistanceKm),
		zap.Duration("duration", time.Since(start)),
	)
	return record
}

// FallbackRecord is indistinguishable from an on-time flight except for
// the sentinel airline and the LookupFailed flag.
func FallbackRecord(flightNumber, date string) domain.FlightRecord {
	return domain.FlightRecord{
		FlightNumber:         strings.ToUpper(strings.TrimSpace(flightNumber)),
		Date:                 date,
		Airline:              FallbackAirline,
		Departure:            domain.UnknownValue,
		Arrival:              domain.UnknownValue,
		Status:               domain.FlightStatusOnTime,
		DelayDurationMinutes: 0,
		DistanceKm:           0,
		DelayReason:          domain.UnknownValue,
		LookupFailed:         true,
	}
}

func searchPrompt(flightNumber, date string) string {
	return fmt.Sprintf(`Find the actual status of flight %s on %s.
I need:
1. Airline name
2. Departure Airport (IATA code)
3. Arrival Airport (IATA code)
4. Status (Landed, Delayed, Cancelled)
5. Delay duration in minutes (if any, otherwise 0)
6. Approximate flight distance in km.
7. Scheduled Departure Time (local time, e.g. 14:30)
8. Scheduled Arrival Time (local time, e.g. 18:45)
9. Specific reason for delay/cancellation if mentioned (e.g. Technical issue, Weather, Crew, Strike).

If the flight was cancelled, assume the delay is effectively > 180 minutes.`, flightNumber, date)
}

func extractPrompt(searchText string) string {
	return fmt.Sprintf("Based on the following text, extract the flight details.\nText: %q", searchText)
}

var _ FlightUseCase = (*FlightService)(nil)
