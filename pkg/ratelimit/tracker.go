package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_rate_limit_cooldowns_total",
		Help: "Total number of rate-limit responses that started or extended a cooldown",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_rate_limit_waits_total",
		Help: "Total number of requests delayed by an active cooldown",
	})

	rateLimitHits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ctgov_rate_limit_consecutive_hits",
		Help: "Consecutive rate-limit responses since the last success",
	})
)

// Tracker gates requests on the shared cooldown. It is safe for
// concurrent use.
type Tracker struct {
	// mu serialises read-modify-write cycles within this process.
	mu     sync.Mutex
	store  Store
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker. A nil store keeps the
// state in memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// GetState retrieves the current cooldown state.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load rate limit state: %w", err)
	}
	return state, nil
}

// RecordRateLimit registers a rate-limit response and extends the cooldown
// to at least now+wait. An existing longer cooldown is kept.
func (t *Tracker) RecordRateLimit(ctx context.Context, wait time.Duration) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load rate limit state: %w", err)
	}

	now := time.Now()
	if until := now.Add(wait); until.After(state.CooldownUntil) {
		state.CooldownUntil = until
	}
	state.Hits++
	state.LastUpdate = now

	if err := t.store.Save(ctx, state); err != nil {
		return state, fmt.Errorf("save rate limit state: %w", err)
	}

	rateLimitCooldownsTotal.Inc()
	rateLimitHits.Set(float64(state.Hits))

	t.logger.Warn().
		Int("hits", state.Hits).
		Time("cooldown_until", state.CooldownUntil).
		Msg("Upstream rate limit hit - cooldown active")

	return state, nil
}

// RecordSuccess resets the consecutive hit counter. The cooldown itself is
// left to expire.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load rate limit state: %w", err)
	}
	if state.Hits == 0 {
		return nil
	}

	state.Hits = 0
	state.LastUpdate = time.Now()
	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save rate limit state: %w", err)
	}
	rateLimitHits.Set(0)

	t.logger.Info().Msg("Upstream rate limit recovered")
	return nil
}

// Wait blocks until the cooldown has passed or ctx is done. State that
// cannot be loaded does not block the request.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Rate limit state unavailable - not waiting")
		return nil
	}
	if !state.Active() {
		return nil
	}

	wait := state.TimeUntilReset()
	rateLimitWaitsTotal.Inc()
	t.logger.Debug().
		Dur("wait_duration", wait).
		Int("hits", state.Hits).
		Msg("Cooldown active - delaying request")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset clears all state.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Reset(ctx)
}
