// Package retry wraps provider calls in a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"contextiq/internal/domain"
	"contextiq/internal/logger"
)

const maxRetryAfter = 30 * time.Second

// Policy bounds how a call is retried.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy starts at 200ms and caps each wait at 5s.
func DefaultPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, InitialInterval: 200 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code       int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// Temporary reports whether the response is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NewStatusError builds a StatusError from a response, honouring a numeric Retry-After.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	e := &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// Do runs op until it succeeds, fails permanently, or the policy is exhausted.
// Throttling, 5xx responses and transport errors are retried. Any final
// failure is wrapped with domain.ErrProviderCall.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0
	hinted := &hintedBackOff{BackOff: exp}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(max(p.MaxRetries, 0))), ctx)

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		var se *StatusError
		switch {
		case ctx.Err() != nil:
			return res, backoff.Permanent(err)
		case errors.As(err, &se):
			if !se.Temporary() {
				return res, backoff.Permanent(err)
			}
			hinted.hint = min(se.RetryAfter, maxRetryAfter)
		case errors.Is(err, domain.ErrInvalidInput):
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		logger.FromContext(ctx).Warn("provider call failed, retrying",
			zap.String("provider", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	res, err := backoff.RetryNotifyWithData(wrapped, b, notify)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", domain.ErrProviderCall, name, err)
	}
	return res, nil
}

// hintedBackOff prefers a server-provided Retry-After over the computed interval.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if h.hint > 0 && next != backoff.Stop {
		next, h.hint = h.hint, 0
	}
	return next
}
