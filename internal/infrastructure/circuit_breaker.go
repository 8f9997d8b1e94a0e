package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	Name string
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests successful trial requests close it again.
	HalfOpenMaxRequests uint32
}

// BreakerStats is a snapshot of breaker activity.
type BreakerStats struct {
	State               string `json:"state"`
	TotalRequests       uint64 `json:"total_requests"`
	TotalFailures       uint64 `json:"total_failures"`
	Rejected            uint64 `json:"rejected"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// CircuitBreaker guards calls to remote collaborators such as object storage.
type CircuitBreaker struct {
	breaker  *gobreaker.CircuitBreaker
	total    atomic.Uint64
	failures atomic.Uint64
	rejected atomic.Uint64
}

// DefaultBreakerConfig returns the settings used for remote dataset fetches.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxFailures:         3,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// NewCircuitBreaker creates a breaker that logs state transitions to logger.
func NewCircuitBreaker(cfg BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = GetLogger()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A cancelled context fails fast.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb.total.Add(1)
	result, err := cb.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			cb.rejected.Add(1)
			return nil, ErrCircuitOpen
		}
		cb.failures.Add(1)
		return nil, err
	}
	return result, nil
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	counts := cb.breaker.Counts()
	return BreakerStats{
		State:               cb.State(),
		TotalRequests:       cb.total.Load(),
		TotalFailures:       cb.failures.Load(),
		Rejected:            cb.rejected.Load(),
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}
