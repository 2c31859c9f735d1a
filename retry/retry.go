// Package retry runs network operations with capped exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 10 * time.Second
	backoffFactor         = 2.0
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter adds up to half of each backoff at random.
	Jitter bool
	// Sleep overrides the wait between attempts (tests).
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *logrus.Entry
}

// DefaultPolicy allows three attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Jitter:         true,
	}
}

// FromConfig builds a policy from the retry section of the configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		p.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		p.MaxBackoff = cfg.MaxBackoff
	}
	return p
}

// NoWait returns a copy of p that never sleeps between attempts.
func (p Policy) NoWait() Policy {
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

// StatusError reports an unsuccessful HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return "http " + http.StatusText(e.StatusCode)
	}
	return "http " + http.StatusText(e.StatusCode) + ": " + body
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying regardless of its type.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a timeout, a rate limit, a server error
// or was explicitly marked transient. Unavailable and private videos never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsKind(err, errors.KindVideoUnavailable) || errors.IsKind(err, errors.KindPrivateVideo) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsTransientStatus(statusErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// Do calls fn until it succeeds, returns a non-transient error, the context
// ends or the policy runs out of attempts.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts {
			break
		}

		backoff := p.backoff(attempt)
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"op":          op,
				"attempt":     attempt,
				"maxAttempts": attempts,
				"backoff":     backoff,
				"error":       err,
			}).Warn("Transient failure, retrying")
		}

		if err := p.sleep(ctx, backoff); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	backoff := time.Duration(float64(initial) * math.Pow(backoffFactor, float64(attempt-1)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	if p.Jitter && backoff/2 > 0 {
		backoff += time.Duration(rand.Int63n(int64(backoff / 2)))
	}
	return backoff
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
