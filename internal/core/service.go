package core

import (
	"context"
	"foodflow/internal/advisory"
	"foodflow/internal/auth"
	"foodflow/internal/infra/persistence/memory"
	"foodflow/pkg/domain"
	"time"

	"go.uber.org/zap"
)

// DefaultSyncConcurrency bounds concurrent consultations in SyncAdvisories.
const DefaultSyncConcurrency = 4

// Service exposes the farm dashboard's operations over a persistent store.
// Every mutation runs in a single store transaction.
type Service struct {
	store           PersistentStore
	advisor         advisory.Generator
	hasher          auth.Hasher
	logger          *zap.Logger
	metrics         MetricsRecorder
	sink            ChangeSink
	now             func() time.Time
	seed            *Fixture
	syncConcurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithChangeSink sets the receiver of committed change events.
func WithChangeSink(sink ChangeSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPasswordHasher overrides password hashing.
func WithPasswordHasher(h auth.Hasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithAdvisor sets the recommendation generator. Generators that can fail
// should be wrapped with advisory.WithFallback.
func WithAdvisor(gen advisory.Generator) Option {
	return func(s *Service) {
		if gen != nil {
			s.advisor = gen
		}
	}
}

// WithDemoSeed populates every new account with the fixture's records.
// A nil fixture disables seeding.
func WithDemoSeed(f *Fixture) Option {
	return func(s *Service) { s.seed = f }
}

// WithSyncConcurrency bounds the consultations SyncAdvisories runs at once.
func WithSyncConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syncConcurrency = n
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:           store,
		hasher:          auth.BcryptHasher{},
		logger:          zap.NewNop(),
		metrics:         noopMetrics{},
		sink:            noopSink{},
		now:             func() time.Time { return time.Now().UTC() },
		syncConcurrency: DefaultSyncConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.advisor == nil {
		s.advisor = advisory.WithFallback(advisory.StaticGenerator{}, s.logger, 0)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation",
			zap.String("op", op),
			zap.String("rule", v.Rule),
			zap.String("severity", string(v.Severity)),
			zap.String("entity_id", v.EntityID),
			zap.String("message", v.Message),
		)
	}
	return res, nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// workspace loads the caller's records from committed state.
func (s *Service) workspace(ctx context.Context, userID string) (domain.Workspace, error) {
	var (
		ws domain.Workspace
		ok bool
	)
	if err := s.store.View(ctx, func(view TransactionView) error {
		ws, ok = domain.WorkspaceFor(view, userID)
		return nil
	}); err != nil {
		return domain.Workspace{}, err
	}
	if !ok {
		return domain.Workspace{}, ErrNotFound{Entity: EntityUser, ID: userID}
	}
	return ws, nil
}

// txWorkspace loads the caller's records from transactional state.
func txWorkspace(tx Transaction, userID string) (domain.Workspace, error) {
	ws, ok := domain.WorkspaceFor(tx.Snapshot(), userID)
	if !ok {
		return domain.Workspace{}, ErrNotFound{Entity: EntityUser, ID: userID}
	}
	return ws, nil
}

func (s *Service) publish(ctx context.Context, userID string, entity EntityType, action Action, id string) {
	event := Event{UserID: userID, Entity: entity, Action: action, ID: id, OccurredAt: s.now()}
	if ws, err := s.workspace(ctx, userID); err == nil {
		event.Stats = ws.Stats()
	}
	s.sink.Publish(ctx, event)
}
