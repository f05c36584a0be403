package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

var meter = otel.Meter("resilience")

// Config tunes one policy instance. Every remote operation gets its own
// instance; breaker state is never shared between operations.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries uint64
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// BreakerMinRequests is the request volume required before the
	// failure ratio is evaluated.
	BreakerMinRequests uint32
	// BreakerFailureRatio opens the circuit when reached.
	BreakerFailureRatio float64
	// BreakerCooldown is how long the circuit stays open before a
	// half-open trial call is allowed.
	BreakerCooldown time.Duration
}

// Policy decorates a remote operation with a per-attempt timeout, a
// circuit breaker and a bounded fixed-delay retry, composed in that
// order from the inside out. Only failures classified as
// domain.ErrUnavailable are retried or counted against the breaker;
// domain-level rejections pass through untouched.
type Policy[T any] struct {
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker[T]
	logger  *slog.Logger
}

func NewPolicy[T any](name string, cfg Config, logger *slog.Logger) *Policy[T] {
	transitions, err := meter.Int64Counter("resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		logger.Error("failed to create breaker transition counter", "error", err)
	}

	breaker := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"operation", name, "from", from.String(), "to", to.String())
			if transitions != nil {
				transitions.Add(context.Background(), 1,
					metric.WithAttributes(
						attribute.String("operation", name),
						attribute.String("to", to.String()),
					))
			}
		},
	})

	return &Policy[T]{
		name:    name,
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
	}
}

// Execute runs op under the policy. The returned error is either the
// operation's own (unretried) error or domain.ErrUnavailable after the
// retry budget is spent.
func (p *Policy[T]) Execute(ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		value, err := p.breaker.Execute(func() (T, error) {
			return p.runWithTimeout(ctx, op)
		})
		if err == nil {
			return value, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: circuit open for %s", domain.ErrUnavailable, p.name)
		}
		if !errors.Is(err, domain.ErrUnavailable) {
			return value, backoff.Permanent(err)
		}
		p.logger.Warn("attempt failed", "operation", p.name, "error", err)
		return value, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.cfg.RetryDelay), p.cfg.MaxRetries),
		ctx,
	)
	return backoff.RetryWithData(attempt, policy)
}

// runWithTimeout bounds one attempt. A late result from an abandoned
// attempt is discarded: the buffered channel is never read once the
// deadline fires, so a timed-out call can never feed the saga.
func (p *Policy[T]) runWithTimeout(ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		value, err := op(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s did not complete within %s", domain.ErrUnavailable, p.name, p.cfg.Timeout)
	}
}

// State reports the breaker state, mainly for tests and debugging.
func (p *Policy[T]) State() gobreaker.State {
	return p.breaker.State()
}
