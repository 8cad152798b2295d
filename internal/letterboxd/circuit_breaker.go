package letterboxd

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/metrics"
)

const breakerName = "letterboxd"

// CircuitBreakerClient wraps Client with a circuit breaker so a failing
// site is not hit on every request. Rejected calls return ErrFetch.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[[]string]
	name   string
}

// NewCircuitBreakerClient builds a Client for cfg behind a breaker that
// opens after cfg.BreakerFailures consecutive failures.
func NewCircuitBreakerClient(cfg Config) *CircuitBreakerClient {
	def := DefaultConfig()
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	logger := logging.WithComponent("letterboxd")
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.BreakerFailures
			if trip {
				logger.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: isBreakerSuccess,
	})

	return &CircuitBreakerClient{
		client: NewClient(cfg),
		cb:     cb,
		name:   breakerName,
	}
}

// FetchWatched calls Client.FetchWatched through the breaker.
func (c *CircuitBreakerClient) FetchWatched(ctx context.Context, user string) ([]string, error) {
	slugs, err := c.cb.Execute(func() ([]string, error) {
		return c.client.FetchWatched(ctx, user)
	})
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
		return slugs, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
	return nil, err
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State { return c.cb.State() }

// isBreakerSuccess keeps answers that say nothing about the site's health,
// such as an unknown user or a cancelled request, from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500 && se.code != 429
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
