package letter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// FailureMessage replaces the letter when the generation call fails.
	FailureMessage = "Failed to generate legal letter due to an API error. Please try again later."
	// EmptyMessage replaces an empty letter body.
	EmptyMessage = "Error generating letter. Please try again."
)

type LetterUseCase interface {
	Draft(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) string
	DraftLetter(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) domain.ClaimLetter
}

type LetterService struct {
	log      *zap.Logger
	searcher llm.GroundedQuerier
}

func NewLetterService(log *zap.Logger, searcher llm.GroundedQuerier) *LetterService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LetterService{log: log, searcher: searcher}
}

func (s *LetterService) Draft(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) string {
	return s.DraftLetter(ctx, flight, passenger, regulation, amount, currency).Text()
}

// DraftLetter never returns an error; a failed call yields FailureMessage
// with Failed set and no sources.
func (s *LetterService) DraftLetter(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) domain.ClaimLetter {
	const op = "letter.DraftLetter"
	ctx, span := otel.Tracer("claimjet/letter").Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("flight.number", flight.FlightNumber),
		attribute.String("claim.regulation", regulation),
		attribute.Int("claim.amount", amount),
	)

	logger := s.log.With(zap.String("op", op), zap.String("flight_number", flight.FlightNumber))

	start := time.Now()
	resp, err := s.searcher.GroundedQuery(ctx, buildPrompt(flight, passenger, regulation, amount, currency))
	if err != nil {
		logger.Error("letter generation failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "generation failed")
		return domain.ClaimLetter{Body: FailureMessage, Failed: true}
	}

	body := resp.Text
	if strings.TrimSpace(body) == "" {
		body = EmptyMessage
	}
	letter := domain.ClaimLetter{
		Body:    body,
		Sources: uniqueSources(resp.Sources),
	}

	span.SetAttributes(attribute.Int("letter.sources", len(letter.Sources)))
	span.SetStatus(otelcodes.Ok, "ok")
	logger.Info("letter drafted",
		zap.Int("letter_len", len(letter.Body)),
		zap.Int("sources", len(letter.Sources)),
		zap.Duration("duration", time.Since(start)),
	)
	return letter
}

// uniqueSources keeps first-seen order and drops blanks.
func uniqueSources(sources []string) []string {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildPrompt(flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) string {
	var details strings.Builder
	fmt.Fprintf(&details, "- Passenger: %s %s\n", passenger.FirstName, passenger.LastName)
	fmt.Fprintf(&details, "- Booking Ref: %s\n", passenger.BookingReference)
	fmt.Fprintf(&details, "- Airline: %s\n", flight.Airline)
	fmt.Fprintf(&details, "- Flight: %s\n", flight.FlightNumber)
	fmt.Fprintf(&details, "- Date: %s\n", flight.Date)
	fmt.Fprintf(&details, "- Route: %s to %s\n", flight.Departure, flight.Arrival)
	if flight.ScheduledDepartureTime != "" && flight.ScheduledArrivalTime != "" {
		fmt.Fprintf(&details, "- Scheduled Times: %s (Departure) - %s (Arrival)\n", flight.ScheduledDepartureTime, flight.ScheduledArrivalTime)
	}
	fmt.Fprintf(&details, "- Incident: %s (%d min delay)\n", flight.Status, flight.DelayDurationMinutes)
	if flight.HasKnownDelayReason() {
		fmt.Fprintf(&details, "- Specific Reason for Disruption: %s\n", flight.DelayReason)
	}
	fmt.Fprintf(&details, "- Compensation Demanded: %s%d per passenger.\n", currency, amount)

	return fmt.Sprintf(`Act as a specialized aviation lawyer. Write a formal, legally robust letter of claim for flight compensation
pursuant to Regulation %[1]s.

Details:
%[2]s
Instructions:
1. Search for the **specific claims email address** or **postal address** for %[3]s specifically for EU261/UK261 claims.
2. Search for the specific Dispute Resolution Body (ADR) that handles %[3]s.
3. Include these specific contact details in the letter header or footer.
4. Cite relevant case law (e.g., Sturgeon v Condor) if applicable.
5. If a delay reason is provided above, argue why it does not constitute an "extraordinary circumstance" if applicable, or state that the airline has failed to prove it is extraordinary.
6. Use a firm but professional tone.
7. Demand payment within 14 days.

Format the output as a clean legal letter.`, regulation, details.String(), flight.Airline)
}

var _ LetterUseCase = (*LetterService)(nil)
