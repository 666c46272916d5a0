package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// tripAfter consecutive failures opens an endpoint's breaker.
const tripAfter = 6

// BackoffConfig controls retries of a failed request.
// MaxRetries == 0 means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (b BackoffConfig) validate() error {
	if b.MaxRetries < 0 || (b.MaxRetries > 0 && b.InitialInterval <= 0) {
		return errInvalidConfig
	}
	return nil
}

// delay doubles per attempt and is capped by MaxInterval when set.
func (b BackoffConfig) delay(attempt int) time.Duration {
	d := b.InitialInterval << attempt
	if b.MaxInterval > 0 && (d > b.MaxInterval || d <= 0) {
		d = b.MaxInterval
	}
	return d
}

var (
	// ErrCircuitOpen is returned without touching the network while an endpoint's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errInvalidConfig = errors.New("invalid backoff configuration")
)

// StatusError is a non-2xx response. 4xx and 5xx are not told apart upstream of here.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Endpoint, e.Code)
}

// newBreaker trips after tripAfter consecutive failures. For endpoints that degrade
// non-2xx responses to a default, only transport failures count.
func newBreaker(endpoint string, degrades bool, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (degrades && IsStatusError(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("upstream breaker state changed",
				zap.String("endpoint", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}

// send runs one request per attempt through the endpoint's breaker and retries
// failures per the client's backoff. Non-2xx responses are drained and returned as
// *StatusError; on success the caller owns the body.
func (c *Client) send(ctx context.Context, endpoint string, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	if err := c.backoff.validate(); err != nil {
		return nil, err
	}
	cb := c.breakers[endpoint]

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		out, err := cb.Execute(func() (interface{}, error) {
			resp, err := c.hc.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
			}
			return resp, nil
		})
		switch {
		case err == nil:
			return out.(*http.Response), nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%s: %w: %v", endpoint, ErrCircuitOpen, err)
		case attempt >= c.backoff.MaxRetries:
			return nil, err
		}

		wait := c.backoff.delay(attempt)
		c.log.Debug("upstream retry",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
