// Package workflow sequences one claim from flight search to drafted letter:
//
//	SEARCH -> ELIGIBILITY -> PAYMENT -> SUCCESS
//
// with Reset returning to SEARCH from any step. A Machine serves a single
// session and is safe for concurrent use.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/eligibility"
	"go.uber.org/zap"
)

type Step string

const (
	StepSearch Step = "SEARCH"
	// StepVerify is reserved for a passenger identity check. Nothing
	// transitions into or out of it.
	StepVerify      Step = "VERIFY"
	StepEligibility Step = "ELIGIBILITY"
	StepPayment     Step = "PAYMENT"
	StepSuccess     Step = "SUCCESS"
)

type LetterStatus string

const (
	LetterNone    LetterStatus = ""
	LetterPending LetterStatus = "PENDING"
	LetterReady   LetterStatus = "READY"
)

type Resolver interface {
	Resolve(ctx context.Context, flightNumber, date string) domain.FlightRecord
}

type Drafter interface {
	DraftLetter(ctx context.Context, flight domain.FlightRecord, passenger domain.PassengerDetails, regulation string, amount int, currency string) domain.ClaimLetter
}

// State is a point-in-time copy of a machine. Absent values are nil.
type State struct {
	Step         Step
	Flight       *domain.FlightRecord
	Claim        *domain.ClaimEstimate
	Passenger    *domain.PassengerDetails
	Letter       *domain.ClaimLetter
	LetterStatus LetterStatus
}

type Machine struct {
	log       *zap.Logger
	resolver  Resolver
	drafter   Drafter
	calculate func(domain.FlightRecord) domain.ClaimEstimate
	onLetter  func(State)

	mu          sync.Mutex
	state       State
	searching   bool
	generation  uint64
	cancelDraft context.CancelFunc
	letterDone  chan struct{}
	drafts      sync.WaitGroup
}

type Option func(*Machine)

// WithLetterHook registers fn to run after a letter is drafted, outside the
// machine lock. It is not called for drafts discarded by Reset.
func WithLetterHook(fn func(State)) Option {
	return func(m *Machine) {
		m.onLetter = fn
	}
}

func WithCalculator(fn func(domain.FlightRecord) domain.ClaimEstimate) Option {
	return func(m *Machine) {
		m.calculate = fn
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

func New(resolver Resolver, drafter Drafter, opts ...Option) *Machine {
	m := &Machine{
		log:       zap.NewNop(),
		resolver:  resolver,
		drafter:   drafter,
		calculate: eligibility.Calculate,
		state:     State{Step: StepSearch},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Search resolves the flight and computes its claim estimate. Empty input is
// rejected before any external call; a second Search while one is running
// fails with domain.ErrBusy.
func (m *Machine) Search(ctx context.Context, flightNumber, date string) (State, error) {
	flightNumber = strings.TrimSpace(flightNumber)
	date = strings.TrimSpace(date)
	if flightNumber == "" {
		return m.Snapshot(), fmt.Errorf("%w: flight number is required", domain.ErrInvalidInput)
	}
	if date == "" {
		return m.Snapshot(), fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	if m.searching {
		m.mu.Unlock()
		return m.Snapshot(), domain.ErrBusy
	}
	if m.state.Step != StepSearch {
		step := m.state.Step
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("%w: search from %s", domain.ErrInvalidTransition, step)
	}
	m.searching = true
	gen := m.generation
	m.mu.Unlock()

	record := m.resolver.Resolve(ctx, flightNumber, date)
	claim := m.calculate(record)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.searching = false
	if m.generation != gen {
		return m.snapshotLocked(), fmt.Errorf("%w: search superseded by reset", domain.ErrInvalidTransition)
	}

	m.state.Flight = &record
	m.state.Claim = &claim
	m.state.Step = StepEligibility

	m.log.Info("eligibility computed",
		zap.String("flight_number", record.FlightNumber),
		zap.Bool("eligible", claim.Eligible),
		zap.Int("amount", claim.Amount),
		zap.Bool("lookup_failed", record.LookupFailed),
	)
	return m.snapshotLocked(), nil
}

// Proceed moves an eligible claim to payment.
func (m *Machine) Proceed() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step != StepEligibility || m.state.Claim == nil || m.state.Flight == nil {
		return m.snapshotLocked(), fmt.Errorf("%w: proceed from %s", domain.ErrInvalidTransition, m.state.Step)
	}
	if !m.state.Claim.Eligible {
		return m.snapshotLocked(), domain.ErrNotEligible
	}

	m.state.Step = StepPayment
	return m.snapshotLocked(), nil
}

// CompletePayment records the passenger, moves to SUCCESS and starts drafting
// the letter in the background. The draft outlives ctx's cancellation but is
// abandoned by Reset.
func (m *Machine) CompletePayment(ctx context.Context, passenger domain.PassengerDetails) (State, error) {
	if err := passenger.Validate(); err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step != StepPayment {
		return m.snapshotLocked(), fmt.Errorf("%w: payment from %s", domain.ErrInvalidTransition, m.state.Step)
	}

	m.state.Passenger = &passenger
	m.state.Step = StepSuccess
	m.state.LetterStatus = LetterPending

	flight := *m.state.Flight
	claim := *m.state.Claim
	gen := m.generation

	draftCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancelDraft = cancel
	m.letterDone = done

	m.drafts.Add(1)
	go m.draft(draftCtx, cancel, done, gen, flight, passenger, claim)

	return m.snapshotLocked(), nil
}

func (m *Machine) draft(ctx context.Context, cancel context.CancelFunc, done chan struct{}, gen uint64, flight domain.FlightRecord, passenger domain.PassengerDetails, claim domain.ClaimEstimate) {
	defer m.drafts.Done()
	defer close(done)
	defer cancel()

	letter := m.drafter.DraftLetter(ctx, flight, passenger, claim.Regulation, claim.Amount, claim.Currency)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.log.Debug("discarding letter drafted before reset", zap.String("flight_number", flight.FlightNumber))
		return
	}
	m.state.Letter = &letter
	m.state.LetterStatus = LetterReady
	snapshot := m.snapshotLocked()
	hook := m.onLetter
	m.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
}

// WaitLetter blocks until the drafted letter is available or ctx is done.
func (m *Machine) WaitLetter(ctx context.Context) (domain.ClaimLetter, error) {
	m.mu.Lock()
	if m.state.Letter != nil {
		letter := *m.state.Letter
		m.mu.Unlock()
		return letter, nil
	}
	done := m.letterDone
	m.mu.Unlock()

	if done == nil {
		return domain.ClaimLetter{}, fmt.Errorf("%w: no letter is being drafted", domain.ErrInvalidTransition)
	}

	select {
	case <-ctx.Done():
		return domain.ClaimLetter{}, ctx.Err()
	case <-done:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Letter == nil {
		return domain.ClaimLetter{}, fmt.Errorf("%w: claim was reset", domain.ErrInvalidTransition)
	}
	return *m.state.Letter, nil
}

// Reset clears flight, claim, passenger and letter together and returns to
// SEARCH. An in-flight draft is cancelled and its result dropped.
func (m *Machine) Reset() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	if m.cancelDraft != nil {
		m.cancelDraft()
		m.cancelDraft = nil
	}
	m.letterDone = nil
	m.state = State{Step: StepSearch}
	return m.snapshotLocked()
}

// Close resets the machine and waits for background drafting to stop.
func (m *Machine) Close() {
	m.Reset()
	m.drafts.Wait()
}

func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() State {
	s := State{Step: m.state.Step, LetterStatus: m.state.LetterStatus}
	if m.state.Flight != nil {
		v := *m.state.Flight
		s.Flight = &v
	}
	if m.state.Claim != nil {
		v := *m.state.Claim
		s.Claim = &v
	}
	if m.state.Passenger != nil {
		v := *m.state.Passenger
		s.Passenger = &v
	}
	if m.state.Letter != nil {
		v := *m.state.Letter
		v.Sources = append([]string(nil), m.state.Letter.Sources...)
		s.Letter = &v
	}
	return s
}
