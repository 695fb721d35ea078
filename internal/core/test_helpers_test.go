package core

import (
	"context"
	"foodflow/internal/advisory"
	"foodflow/internal/auth"
	"foodflow/internal/infra/persistence/memory"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Publish(_ context.Context, e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureSink) last() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}
	}
	return c.events[len(c.events)-1]
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func fixedGenerator(res advisory.Result) advisory.Generator {
	return advisory.GeneratorFunc(func(context.Context, advisory.Context) (advisory.Result, error) {
		return res, nil
	})
}

// tickingClock advances one second per call so successive transactions get
// distinct timestamps.
func tickingClock(start time.Time) func() time.Time {
	var (
		mu sync.Mutex
		n  int
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	clock := tickingClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(clock))
	base := []Option{
		WithPasswordHasher(auth.BcryptHasher{Cost: bcrypt.MinCost}),
		WithClock(clock),
	}
	return NewService(store, append(base, opts...)...)
}

func newTestServiceOn(t *testing.T, store PersistentStore, opts ...Option) *Service {
	t.Helper()
	return NewService(store, append([]Option{WithPasswordHasher(auth.BcryptHasher{Cost: bcrypt.MinCost})}, opts...)...)
}

func mustSignup(t *testing.T, svc *Service, email string) UserProfile {
	t.Helper()
	user, _, err := svc.RegisterUser(context.Background(), SignupInput{
		Name:     "Amina Okafor",
		FarmName: "Okafor Farms",
		Region:   "west-africa",
		Email:    email,
		Password: "harvest-2025",
	})
	if err != nil {
		t.Fatalf("register user: %v", err)
	}
	return user
}

func mustDemoSeed(t *testing.T) *Fixture {
	t.Helper()
	f, err := DemoFixture()
	if err != nil {
		t.Fatalf("demo fixture: %v", err)
	}
	return f
}
