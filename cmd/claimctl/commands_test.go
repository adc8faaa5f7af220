package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFlights map[string]domain.FlightRecord

func (s stubFlights) Resolve(_ context.Context, flightNumber, _ string) domain.FlightRecord {
	return s[flightNumber]
}

type stubDrafter struct {
	calls int
}

func (d *stubDrafter) DraftLetter(_ context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) domain.ClaimLetter {
	d.calls++
	return domain.ClaimLetter{Body: "Dear " + flight.Airline + ", " + passenger.FullName(), Sources: []string{"https://example.com"}}
}

func testFactory(drafter *stubDrafter) backendFactory {
	flights := stubFlights{
		"LH401": {FlightNumber: "LH401", Date: "2025-01-10", Airline: "Lufthansa", Departure: "FRA", Arrival: "JFK",
			Status: domain.FlightStatusDelayed, DelayDurationMinutes: 185, DistanceKm: 6200},
		"BA117": {FlightNumber: "BA117", Date: "2025-01-10", Airline: "British Airways", Status: domain.FlightStatusOnTime},
	}
	return func(context.Context) (*backend, error) {
		return &backend{flights: flights, drafter: drafter, serviceFeeCents: 299, close: func() error { return nil }}, nil
	}
}

func run(t *testing.T, factory backendFactory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(factory)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheck_Eligible(t *testing.T) {
	out, err := run(t, testFactory(&stubDrafter{}), "check", "--flight", "LH401", "--date", "2025-01-10")

	require.NoError(t, err)
	assert.Contains(t, out, "Eligible:  yes, €600 under EU 261/2004")
	assert.Contains(t, out, "you keep €390 after a €210 fee")
	assert.Contains(t, out, "flat €2.99")
}

func TestCheck_MissingFlags(t *testing.T) {
	called := false
	factory := func(context.Context) (*backend, error) {
		called = true
		return nil, errors.New("unexpected")
	}

	_, err := run(t, factory, "check", "--flight", "LH401")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.False(t, called)
}

func TestLetter_Eligible(t *testing.T) {
	drafter := &stubDrafter{}

	out, err := run(t, testFactory(drafter), "letter",
		"--flight", "LH401", "--date", "2025-01-10",
		"--first-name", "Jane", "--last-name", "Doe", "--booking-ref", "ABC123", "--email", "jane@example.com")

	require.NoError(t, err)
	assert.Contains(t, out, "Dear Lufthansa, Jane Doe")
	assert.Contains(t, out, "Sources for Airline Contact Info:")
	assert.Equal(t, 1, drafter.calls)
}

func TestLetter_NotEligible(t *testing.T) {
	drafter := &stubDrafter{}

	out, err := run(t, testFactory(drafter), "letter",
		"--flight", "BA117", "--date", "2025-01-10",
		"--first-name", "Jane", "--last-name", "Doe", "--booking-ref", "ABC123", "--email", "jane@example.com")

	assert.ErrorIs(t, err, domain.ErrNotEligible)
	assert.Contains(t, out, "Eligible:  no")
	assert.Zero(t, drafter.calls)
}

func TestLetter_InvalidPassenger(t *testing.T) {
	_, err := run(t, testFactory(&stubDrafter{}), "letter",
		"--flight", "LH401", "--date", "2025-01-10",
		"--first-name", "Jane", "--last-name", "Doe", "--booking-ref", "ABC123", "--email", "bad")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
