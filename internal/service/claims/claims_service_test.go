package claims

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/email"
	"github.com/Domenick1991/claimjet/internal/kafka"
	"github.com/Domenick1991/claimjet/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, flightNumber, date string) domain.FlightRecord {
	args := m.Called(ctx, flightNumber, date)
	return args.Get(0).(domain.FlightRecord)
}

type MockDrafter struct {
	mock.Mock
}

func (m *MockDrafter) DraftLetter(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) domain.ClaimLetter {
	args := m.Called(ctx, flight, passenger, regulation, amount, currency)
	return args.Get(0).(domain.ClaimLetter)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, letter email.Letter) error {
	args := m.Called(ctx, letter)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	delayedFlight = domain.FlightRecord{
		FlightNumber:         "LH401",
		Date:                 "2025-01-10",
		Airline:              "Lufthansa",
		Departure:            "FRA",
		Arrival:              "JFK",
		Status:               domain.FlightStatusDelayed,
		DelayDurationMinutes: 185,
		DistanceKm:           6200,
	}
	passenger = domain.PassengerDetails{
		FirstName:        "Jane",
		LastName:         "Doe",
		BookingReference: "ABC123",
		Email:            "jane@example.com",
	}
)

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e kafka.ClaimEvent) bool { return e.Type == eventType })
}

func TestClaimsService_FullFlow(t *testing.T) {
	resolver := &MockResolver{}
	drafter := &MockDrafter{}
	producer := &MockProducer{}
	sender := &MockSender{}
	svc := NewClaimsService(zap.NewNop(), resolver, drafter,
		WithProducer(producer, "claims.events"),
		WithLetterSender(sender),
	)

	ctx := context.Background()
	letter := domain.ClaimLetter{Body: "Dear Lufthansa", Sources: []string{"https://lufthansa.com"}}

	resolver.On("Resolve", mock.Anything, "LH401", "2025-01-10").Return(delayedFlight).Once()
	drafter.On("DraftLetter", mock.Anything, delayedFlight, passenger, domain.RegulationEU261, 600, domain.CurrencyEUR).Return(letter).Once()
	for _, eventType := range []string{
		kafka.EventSessionStarted, kafka.EventEligibility, kafka.EventPaymentStarted, kafka.EventPaid, kafka.EventLetterReady,
	} {
		producer.On("Publish", mock.Anything, "claims.events", mock.Anything, eventOfType(eventType)).Return(nil).Once()
	}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(l email.Letter) bool {
		return l.To == "jane@example.com" &&
			l.FlightNumber == "LH401" &&
			l.FileName == "Claim_Letter_LH401.txt" &&
			l.Text == letter.Text()
	})).Return(nil).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, workflow.StepSearch, session.State.Step)

	session, err = svc.Search(ctx, session.ID, "LH401", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, workflow.StepEligibility, session.State.Step)
	require.NotNil(t, session.Payout)
	assert.Equal(t, 210, session.Payout.CompetitorFee)
	assert.Equal(t, 600, session.Payout.Payout)

	session, err = svc.Proceed(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StepPayment, session.State.Step)

	session, err = svc.Pay(ctx, session.ID, passenger)
	require.NoError(t, err)
	assert.Equal(t, workflow.StepSuccess, session.State.Step)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	session, err = svc.Letter(waitCtx, session.ID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.LetterReady, session.State.LetterStatus)
	require.NotNil(t, session.State.Letter)
	assert.Equal(t, letter, *session.State.Letter)

	svc.Close()
	resolver.AssertExpectations(t)
	drafter.AssertExpectations(t)
	producer.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestClaimsService_PublishedEventsCarryNoPassengerData(t *testing.T) {
	resolver := &MockResolver{}
	drafter := &MockDrafter{}
	producer := &MockProducer{}
	sender := &MockSender{}
	svc := NewClaimsService(nil, resolver, drafter, WithProducer(producer, "claims.events"), WithLetterSender(sender))
	ctx := context.Background()

	var mu sync.Mutex
	var published []interface{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, args.Get(3))
		}).
		Return(nil)
	resolver.On("Resolve", mock.Anything, "LH401", "2025-01-10").Return(delayedFlight).Once()
	drafter.On("DraftLetter", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ClaimLetter{Body: "Dear Lufthansa, I am Jane Doe, booking ABC123."}).Once()
	sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Search(ctx, session.ID, "LH401", "2025-01-10")
	require.NoError(t, err)
	_, err = svc.Proceed(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.Pay(ctx, session.ID, passenger)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = svc.Letter(waitCtx, session.ID, true)
	require.NoError(t, err)
	svc.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 5)
	for _, v := range published {
		_, ok := v.(kafka.ClaimEvent)
		assert.True(t, ok, "unexpected payload type %T", v)

		data, err := json.Marshal(v)
		require.NoError(t, err)
		for _, field := range []string{passenger.FirstName, passenger.LastName, passenger.BookingReference, passenger.Email, "Dear Lufthansa"} {
			assert.NotContains(t, string(data), field)
		}
	}
	sender.AssertExpectations(t)
}

func TestClaimsService_FailedLetterIsNotEmailed(t *testing.T) {
	resolver := &MockResolver{}
	drafter := &MockDrafter{}
	sender := &MockSender{}
	svc := NewClaimsService(nil, resolver, drafter, WithLetterSender(sender))
	ctx := context.Background()

	resolver.On("Resolve", mock.Anything, "LH401", "2025-01-10").Return(delayedFlight).Once()
	drafter.On("DraftLetter", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ClaimLetter{Body: "Error generating letter.", Failed: true}).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Search(ctx, session.ID, "LH401", "2025-01-10")
	require.NoError(t, err)
	_, err = svc.Proceed(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.Pay(ctx, session.ID, passenger)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	session, err = svc.Letter(waitCtx, session.ID, true)
	require.NoError(t, err)
	svc.Close()

	require.NotNil(t, session.State.Letter)
	assert.True(t, session.State.Letter.Failed)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestClaimsService_UnknownSession(t *testing.T) {
	svc := NewClaimsService(nil, &MockResolver{}, &MockDrafter{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Search(ctx, "missing", "LH401", "2025-01-10")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Reset(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Letter(ctx, "missing", false)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClaimsService_NotEligibleHasNoPayout(t *testing.T) {
	resolver := &MockResolver{}
	svc := NewClaimsService(nil, resolver, &MockDrafter{})
	defer svc.Close()
	ctx := context.Background()

	onTime := domain.FlightRecord{FlightNumber: "BA117", Date: "2025-01-10", Status: domain.FlightStatusOnTime}
	resolver.On("Resolve", mock.Anything, "BA117", "2025-01-10").Return(onTime).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	session, err = svc.Search(ctx, session.ID, "BA117", "2025-01-10")
	require.NoError(t, err)
	assert.Nil(t, session.Payout)

	_, err = svc.Proceed(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotEligible)
}

func TestClaimsService_LetterBeforePayment(t *testing.T) {
	svc := NewClaimsService(nil, &MockResolver{}, &MockDrafter{})
	defer svc.Close()

	session, err := svc.Start(context.Background())
	require.NoError(t, err)

	_, err = svc.Letter(context.Background(), session.ID, true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestClaimsService_PublishFailureDoesNotFailWorkflow(t *testing.T) {
	resolver := &MockResolver{}
	producer := &MockProducer{}
	svc := NewClaimsService(zap.NewNop(), resolver, &MockDrafter{}, WithProducer(producer, "claims.events"))
	defer svc.Close()
	ctx := context.Background()

	producer.On("Publish", mock.Anything, "claims.events", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	resolver.On("Resolve", mock.Anything, "LH401", "2025-01-10").Return(delayedFlight).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	session, err = svc.Search(ctx, session.ID, "LH401", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, workflow.StepEligibility, session.State.Step)
}

func TestClaimsService_ResetClearsSession(t *testing.T) {
	resolver := &MockResolver{}
	svc := NewClaimsService(nil, resolver, &MockDrafter{})
	defer svc.Close()
	ctx := context.Background()

	resolver.On("Resolve", mock.Anything, "LH401", "2025-01-10").Return(delayedFlight).Once()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Search(ctx, session.ID, "LH401", "2025-01-10")
	require.NoError(t, err)

	session, err = svc.Reset(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.State{Step: workflow.StepSearch}, session.State)
	assert.Nil(t, session.Payout)
}

func TestClaimsService_ExpireIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	producer := &MockProducer{}
	svc := NewClaimsService(nil, &MockResolver{}, &MockDrafter{},
		WithIdleTTL(10*time.Minute),
		WithProducer(producer, "claims.events"),
		withClock(clock.Now),
	)
	defer svc.Close()
	ctx := context.Background()

	producer.On("Publish", mock.Anything, "claims.events", mock.Anything, eventOfType(kafka.EventSessionStarted)).Return(nil).Twice()

	stale, err := svc.Start(ctx)
	require.NoError(t, err)
	clock.Advance(8 * time.Minute)
	fresh, err := svc.Start(ctx)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	producer.On("Publish", mock.Anything, "claims.events", stale.ID, eventOfType(kafka.EventExpired)).Return(nil).Once()

	expired, err := svc.ExpireIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, expired)

	_, err = svc.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	producer.AssertExpectations(t)
}

func TestClaimsService_GetKeepsSessionAlive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewClaimsService(nil, &MockResolver{}, &MockDrafter{}, WithIdleTTL(10*time.Minute), withClock(clock.Now))
	defer svc.Close()
	ctx := context.Background()

	session, err := svc.Start(ctx)
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	_, err = svc.Get(ctx, session.ID)
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)

	expired, err := svc.ExpireIdle(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}
