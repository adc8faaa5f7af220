package claims

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/eligibility"
	"github.com/Domenick1991/claimjet/internal/email"
	"github.com/Domenick1991/claimjet/internal/kafka"
	"github.com/Domenick1991/claimjet/internal/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIdleTTL = 30 * time.Minute

	publishTimeout = 10 * time.Second
	sendTimeout    = 30 * time.Second
)

type ClaimsUseCase interface {
	Start(ctx context.Context) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Search(ctx context.Context, id, flightNumber, date string) (Session, error)
	Proceed(ctx context.Context, id string) (Session, error)
	Pay(ctx context.Context, id string, passenger domain.PassengerDetails) (Session, error)
	Letter(ctx context.Context, id string, wait bool) (Session, error)
	Reset(ctx context.Context, id string) (Session, error)
	ExpireIdle(ctx context.Context) ([]string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// LetterSender delivers a drafted letter to its passenger. Passenger details
// never leave the process.
type LetterSender interface {
	Send(ctx context.Context, letter email.Letter) error
}

// Session is what callers see of one claim: the workflow state plus the
// payout comparison once a claim estimate exists.
type Session struct {
	ID        string
	State     workflow.State
	Payout    *eligibility.PayoutComparison
	UpdatedAt time.Time
}

type entry struct {
	machine  *workflow.Machine
	lastSeen time.Time
}

type ClaimsService struct {
	log      *zap.Logger
	resolver workflow.Resolver
	drafter  workflow.Drafter

	producer    Producer
	eventsTopic string
	sender      LetterSender

	idleTTL         time.Duration
	serviceFeeCents int
	now             func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type ClaimsServiceOption func(*ClaimsService)

// WithProducer publishes a ClaimEvent to eventsTopic on every step change.
func WithProducer(producer Producer, eventsTopic string) ClaimsServiceOption {
	return func(s *ClaimsService) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithLetterSender(sender LetterSender) ClaimsServiceOption {
	return func(s *ClaimsService) {
		s.sender = sender
	}
}

func WithIdleTTL(ttl time.Duration) ClaimsServiceOption {
	return func(s *ClaimsService) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func WithServiceFee(cents int) ClaimsServiceOption {
	return func(s *ClaimsService) {
		s.serviceFeeCents = cents
	}
}

func withClock(now func() time.Time) ClaimsServiceOption {
	return func(s *ClaimsService) {
		s.now = now
	}
}

func NewClaimsService(log *zap.Logger, resolver workflow.Resolver, drafter workflow.Drafter, opts ...ClaimsServiceOption) *ClaimsService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ClaimsService{
		log:             log,
		resolver:        resolver,
		drafter:         drafter,
		idleTTL:         DefaultIdleTTL,
		serviceFeeCents: eligibility.DefaultServiceFeeCents,
		now:             time.Now,
		sessions:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ClaimsService) Start(ctx context.Context) (Session, error) {
	id := uuid.NewString()
	machine := workflow.New(s.resolver, s.drafter,
		workflow.WithLogger(s.log.With(zap.String("session_id", id))),
		workflow.WithLetterHook(func(state workflow.State) { s.notifyLetter(id, state) }),
	)

	s.mu.Lock()
	s.sessions[id] = &entry{machine: machine, lastSeen: s.now()}
	s.mu.Unlock()

	session := s.session(id, machine.Snapshot())
	s.publishEvent(ctx, kafka.EventSessionStarted, session)
	return session, nil
}

func (s *ClaimsService) Get(ctx context.Context, id string) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}
	return s.session(id, machine.Snapshot()), nil
}

func (s *ClaimsService) Search(ctx context.Context, id, flightNumber, date string) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}

	state, err := machine.Search(ctx, flightNumber, date)
	session := s.session(id, state)
	if err != nil {
		return session, err
	}

	s.publishEvent(ctx, kafka.EventEligibility, session)
	return session, nil
}

func (s *ClaimsService) Proceed(ctx context.Context, id string) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}

	state, err := machine.Proceed()
	session := s.session(id, state)
	if err != nil {
		return session, err
	}

	s.publishEvent(ctx, kafka.EventPaymentStarted, session)
	return session, nil
}

// Pay completes the mocked payment. The letter is drafted in the background;
// poll Letter or call it with wait set.
func (s *ClaimsService) Pay(ctx context.Context, id string, passenger domain.PassengerDetails) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}

	state, err := machine.CompletePayment(ctx, passenger)
	session := s.session(id, state)
	if err != nil {
		return session, err
	}

	s.publishEvent(ctx, kafka.EventPaid, session)
	return session, nil
}

// Letter returns the session once its letter is ready. Without wait, or when
// ctx ends first, a session whose letter is still pending is returned as is.
func (s *ClaimsService) Letter(ctx context.Context, id string, wait bool) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}

	state := machine.Snapshot()
	if state.Step != workflow.StepSuccess {
		return s.session(id, state), fmt.Errorf("%w: no letter before payment", domain.ErrInvalidTransition)
	}

	if wait && state.LetterStatus == workflow.LetterPending {
		if _, err := machine.WaitLetter(ctx); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return s.session(id, machine.Snapshot()), err
			}
		}
		state = machine.Snapshot()
	}
	return s.session(id, state), nil
}

func (s *ClaimsService) Reset(ctx context.Context, id string) (Session, error) {
	machine, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}

	session := s.session(id, machine.Reset())
	s.publishEvent(ctx, kafka.EventReset, session)
	return session, nil
}

// ExpireIdle drops sessions not used within the idle TTL and stops their
// background drafting.
func (s *ClaimsService) ExpireIdle(ctx context.Context) ([]string, error) {
	deadline := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var expired []string
	var machines []*workflow.Machine
	for id, e := range s.sessions {
		if e.lastSeen.Before(deadline) {
			expired = append(expired, id)
			machines = append(machines, e.machine)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for i, m := range machines {
		m.Close()
		s.publishEvent(ctx, kafka.EventExpired, Session{ID: expired[i], State: workflow.State{Step: workflow.StepSearch}, UpdatedAt: s.now()})
	}
	if len(expired) > 0 {
		s.log.Info("expired idle claim sessions", zap.String("op", "claims.ExpireIdle"), zap.Int("count", len(expired)))
	}
	return expired, nil
}

// Close stops every session. Used on shutdown.
func (s *ClaimsService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.machine.Close()
	}
}

func (s *ClaimsService) touch(id string) (*workflow.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.machine, nil
}

func (s *ClaimsService) session(id string, state workflow.State) Session {
	session := Session{ID: id, State: state, UpdatedAt: s.now()}
	if state.Claim != nil && state.Claim.Eligible {
		payout := eligibility.ComparePayout(state.Claim.Amount, s.serviceFeeCents)
		session.Payout = &payout
	}
	return session
}

func (s *ClaimsService) publishEvent(ctx context.Context, eventType string, session Session) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}

	event := kafka.ClaimEvent{
		Type:       eventType,
		SessionID:  session.ID,
		Step:       string(session.State.Step),
		OccurredAt: session.UpdatedAt,
	}
	if session.State.Claim != nil {
		event.Eligible = session.State.Claim.Eligible
		event.Amount = session.State.Claim.Amount
	}

	if err := s.producer.Publish(ctx, s.eventsTopic, session.ID, event); err != nil {
		s.log.Warn("failed to publish claim event",
			zap.String("type", eventType),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

// notifyLetter runs on the drafting goroutine after the letter is stored.
func (s *ClaimsService) notifyLetter(id string, state workflow.State) {
	if state.Letter == nil || state.Flight == nil || state.Passenger == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	s.publishEvent(publishCtx, kafka.EventLetterReady, s.session(id, state))
	cancel()

	if s.sender == nil || state.Letter.Failed {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	letter := email.Letter{
		SessionID:    id,
		To:           state.Passenger.Email,
		FlightNumber: state.Flight.FlightNumber,
		FileName:     domain.LetterFileName(state.Flight.FlightNumber),
		Text:         state.Letter.Text(),
	}
	if err := s.sender.Send(sendCtx, letter); err != nil {
		s.log.Warn("failed to email claim letter", zap.String("session_id", id), zap.Error(err))
	}
}

var _ ClaimsUseCase = (*ClaimsService)(nil)
