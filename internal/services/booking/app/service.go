// Package app wires the booking domain to storage, rate limiting, metrics
// and notification dispatch. It owns the load-decide-commit cycle for every
// lifecycle operation.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/platform/id"
	"github.com/luminastudio/booking/internal/platform/ratelimiter"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/observability/metrics"
	"github.com/luminastudio/booking/internal/services/booking/storage"
)

// Service exposes the booking use cases. All state decisions happen in the
// domain; the service loads snapshots, commits outcomes atomically and fires
// notifications only after the commit succeeds.
type Service struct {
	store      storage.SessionStore
	machine    *session.Machine
	dispatcher Dispatcher
	limiter    *ratelimiter.MapLimiter
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() (string, error)
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithDispatcher sets the notification dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithLimiter sets the per-actor transition rate limiter.
func WithLimiter(l *ratelimiter.MapLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics sets the Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation, primarily for tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService builds a booking service around a store and a state machine.
func NewService(store storage.SessionStore, machine *session.Machine, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if machine == nil {
		return nil, errors.New("state machine is required")
	}
	s := &Service{
		store:   store,
		machine: machine,
		now:     time.Now,
		newID:   id.NewID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateSession opens a new session in REQUEST status.
func (s *Service) CreateSession(ctx context.Context, input session.CreateSessionInput) (session.Session, error) {
	created, err := session.CreateSession(input, s.now, s.newID)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.store.CreateSession(ctx, created); err != nil {
		return session.Session{}, classifyStoreErr("persist session", err)
	}
	s.metrics.ObserveSessionCreated()
	return created, nil
}

// TransitionResult is a committed transition plus the notification intents
// it emitted.
type TransitionResult struct {
	Session session.Session
	Intents []session.Intent
}

// AttemptTransition loads the session, evaluates the transition and commits
// the outcome atomically under optimistic concurrency. Notifications are
// dispatched only after the commit succeeds.
func (s *Service) AttemptTransition(ctx context.Context, sessionID string, in session.AttemptInput) (TransitionResult, error) {
	if s.limiter != nil && !s.limiter.Allow(in.Actor.ID, s.now()) {
		s.metrics.ObserveTransition("", in.To.String(), metrics.ResultRateLimited)
		return TransitionResult{}, apperrors.WithMetadata(
			apperrors.CodeSessionRateLimited,
			"too many transition attempts",
			map[string]string{"ActorID": in.Actor.ID},
		)
	}

	loaded, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return TransitionResult{}, classifyStoreErr("load session", err)
	}

	outcome, err := s.machine.Attempt(loaded, in, s.now, s.newID)
	if err != nil {
		s.observeAttemptFailure(loaded.Status, in.To, err)
		return TransitionResult{}, err
	}

	committed, err := s.store.SaveSession(ctx, outcome.Session, outcome.AppendedPayments, &outcome.Entry, loaded.Version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			s.metrics.ObserveTransition(loaded.Status.String(), in.To.String(), metrics.ResultVersionConflict)
		} else {
			s.metrics.ObserveTransition(loaded.Status.String(), in.To.String(), metrics.ResultError)
		}
		return TransitionResult{}, classifyStoreErr("commit transition", err)
	}

	s.metrics.ObserveTransition(loaded.Status.String(), in.To.String(), metrics.ResultCommitted)
	for _, payment := range outcome.AppendedPayments {
		s.metrics.ObservePayment(payment.Kind.String())
	}
	s.dispatch(ctx, outcome.Intents)
	return TransitionResult{Session: committed, Intents: outcome.Intents}, nil
}

// RecordPayment appends one ledger entry to a session under optimistic
// concurrency. The ledger is append-only; nothing is ever edited or removed.
func (s *Service) RecordPayment(ctx context.Context, sessionID string, input session.RecordPaymentInput) (session.Session, session.Payment, error) {
	loaded, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, session.Payment{}, classifyStoreErr("load session", err)
	}

	updated, payment, err := session.RecordPayment(loaded, input, s.now, s.newID)
	if err != nil {
		return session.Session{}, session.Payment{}, err
	}

	committed, err := s.store.SaveSession(ctx, updated, []session.Payment{payment}, nil, loaded.Version)
	if err != nil {
		return session.Session{}, session.Payment{}, classifyStoreErr("record payment", err)
	}
	s.metrics.ObservePayment(payment.Kind.String())
	return committed, payment, nil
}

// GetSession returns the full aggregate.
func (s *Service) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	loaded, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, classifyStoreErr("load session", err)
	}
	return loaded, nil
}

// ListSessions returns a page of sessions matching the filter.
func (s *Service) ListSessions(ctx context.Context, filter storage.ListFilter) (storage.SessionPage, error) {
	page, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return storage.SessionPage{}, classifyStoreErr("list sessions", err)
	}
	return page, nil
}

// ListPayments returns the session's ledger in insertion order.
func (s *Service) ListPayments(ctx context.Context, sessionID string) ([]session.Payment, error) {
	payments, err := s.store.ListPayments(ctx, sessionID)
	if err != nil {
		return nil, classifyStoreErr("list payments", err)
	}
	return payments, nil
}

// ListHistory returns the session's status history in insertion order.
func (s *Service) ListHistory(ctx context.Context, sessionID string) ([]session.HistoryEntry, error) {
	entries, err := s.store.ListHistory(ctx, sessionID)
	if err != nil {
		return nil, classifyStoreErr("list history", err)
	}
	return entries, nil
}

// classifyStoreErr surfaces unclassified storage failures as infrastructure
// errors so callers can tell a dependency outage apart from a business
// rejection. Already-coded errors pass through untouched.
func classifyStoreErr(op string, err error) error {
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeInfrastructure, op, err)
}

func (s *Service) observeAttemptFailure(from, to session.Status, err error) {
	var gve *session.GuardViolationError
	switch {
	case errors.As(err, &gve):
		s.metrics.ObserveTransition(from.String(), to.String(), metrics.ResultGuardRejected)
		for _, violation := range gve.Violations {
			s.metrics.ObserveGuardViolation(violation.Code)
		}
	case apperrors.CodeOf(err) == apperrors.CodeSessionTerminal:
		s.metrics.ObserveTransition(from.String(), to.String(), metrics.ResultTerminal)
	case apperrors.CodeOf(err) == apperrors.CodeSessionInvalidTransition:
		s.metrics.ObserveTransition(from.String(), to.String(), metrics.ResultInvalidEdge)
	default:
		s.metrics.ObserveTransition(from.String(), to.String(), metrics.ResultError)
	}
}

// dispatch fires notification intents after a commit. Delivery failures are
// logged and never fail the committed transition.
func (s *Service) dispatch(ctx context.Context, intents []session.Intent) {
	if s.dispatcher == nil || len(intents) == 0 {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, intents); err != nil {
		log.Printf("dispatch notifications: %v", err)
	}
}
