package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards calls to an upstream service. It opens after a run of
// consecutive failures and rejects calls until the cooldown passes, then lets
// a single trial call through: a successful one closes it, a failed one reopens it.
type Breaker struct {
	open atomic.Bool // Atomic for lock-free reads

	// Configuration
	name      string
	threshold int
	cooldown  time.Duration
	trips     func(error) bool
	now       func() time.Time
	logger    *zap.Logger

	// Protected by mutex
	mu           sync.Mutex
	failures     int       // Consecutive tripping failures
	openedAt     time.Time // When the breaker last opened
	trialRunning bool      // A half-open trial call is in flight
	lastFailure  error
}

// Config holds circuit breaker configuration.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before letting a trial call through.
	Cooldown time.Duration

	// Trips reports whether an error counts as a failure. Defaults to every error.
	Trips func(error) bool

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *zap.Logger
}

// Status holds current circuit breaker status for debugging.
type Status struct {
	Name        string
	Open        bool
	Failures    int
	OpenedAt    time.Time
	LastFailure string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg *Config) (breaker *Breaker, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}

	breaker = &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		trips:     cfg.Trips,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if breaker.trips == nil {
		breaker.trips = func(error) bool { return true }
	}
	if breaker.now == nil {
		breaker.now = time.Now
	}

	BreakerOpen.WithLabelValues(breaker.name).Set(0)

	return breaker, nil
}

// IsOpen reports whether the breaker is currently rejecting calls.
// This is lock-free and safe to call from hot paths.
func (b *Breaker) IsOpen() bool {
	return b.open.Load()
}

// Do runs fn unless the breaker is open and records its outcome. A call the
// caller cancelled says nothing about the upstream and leaves the state as is.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	if errors.Is(err, context.Canceled) {
		b.releaseTrial()
		return err
	}
	if err != nil && b.trips(err) {
		b.recordFailure(err)
		return err
	}
	b.recordSuccess()
	return err
}

func (b *Breaker) allow() error {
	if !b.open.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.trialRunning || b.now().Sub(b.openedAt) < b.cooldown {
		RejectedTotal.WithLabelValues(b.name).Inc()
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}

	b.trialRunning = true
	b.logger.Info("circuit-breaker-half-open", zap.String("breaker", b.name))
	return nil
}

func (b *Breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = err

	if b.trialRunning || (!b.open.Load() && b.failures >= b.threshold) {
		b.trialRunning = false
		b.openedAt = b.now()
		if !b.open.Swap(true) {
			BreakerOpen.WithLabelValues(b.name).Set(1)
			StateChangesTotal.WithLabelValues(b.name, "open").Inc()
		}

		b.logger.Warn("circuit-breaker-opened",
			zap.String("breaker", b.name),
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
			zap.Error(err))
	}
}

// releaseTrial lets another call try a half-open breaker.
func (b *Breaker) releaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialRunning = false
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trialRunning = false
	if b.open.Swap(false) {
		BreakerOpen.WithLabelValues(b.name).Set(0)
		StateChangesTotal.WithLabelValues(b.name, "closed").Inc()

		b.logger.Info("circuit-breaker-closed", zap.String("breaker", b.name))
	}
}

// GetStatus returns current circuit breaker status for debugging and HTTP endpoints.
func (b *Breaker) GetStatus() (status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	status = Status{
		Name:     b.name,
		Open:     b.open.Load(),
		Failures: b.failures,
		OpenedAt: b.openedAt,
	}
	if b.lastFailure != nil {
		status.LastFailure = b.lastFailure.Error()
	}

	return status
}
