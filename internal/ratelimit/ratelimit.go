// Package ratelimit throttles calls to hosted model APIs and classifies
// their HTTP failures.
//
// A token bucket spaces requests proactively; response headers move the
// limiter into a cool-down when the provider reports its quota is spent.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// Response headers consulted by Observe.
const (
	HeaderRetryAfter        = "Retry-After"
	HeaderRemainingRequests = "X-Ratelimit-Remaining-Requests"
	HeaderResetRequests     = "X-Ratelimit-Reset-Requests"
)

// maxErrorBody caps how much of an error body ends up in messages.
const maxErrorBody = 512

// Limiter combines proactive throttling with provider-reported quotas.
type Limiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	remaining int
	resetAt   time.Time
	now       func() time.Time
}

// New creates a limiter allowing rps requests per second with the given
// burst. rps <= 0 disables proactive throttling.
func New(rps float64, burst int) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		bucket:    rate.NewLimiter(limit, burst),
		remaining: -1,
		now:       time.Now,
	}
}

// Wait blocks until a request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	remaining, resetAt := l.remaining, l.resetAt
	now := l.now()
	l.mu.Unlock()

	if remaining != 0 || !now.Before(resetAt) {
		return nil
	}
	timer := time.NewTimer(resetAt.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe updates quota state from response headers.
func (l *Limiter) Observe(resp *http.Response) {
	if resp == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if v := resp.Header.Get(HeaderRemainingRequests); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			l.remaining = n
		}
	}
	if v := resp.Header.Get(HeaderResetRequests); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			l.resetAt = now.Add(d)
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		l.remaining = 0
		if d := RetryAfter(resp); d > 0 {
			l.resetAt = now.Add(d)
		}
	}
}

// Remaining returns the last reported remaining quota, or -1 if unknown.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// ResetAt returns when the reported quota resets.
func (l *Limiter) ResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetAt
}

// RetryAfter parses the Retry-After header as seconds or an HTTP date.
func RetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get(HeaderRetryAfter)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// APIError is a non-2xx response from a model provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Is makes rate limits and server errors match domain.ErrTransientProvider.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrTransientProvider && IsTransientStatus(e.StatusCode)
}

// IsTransientStatus reports whether a status code is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// CheckResponse returns nil for 2xx responses and an *APIError otherwise.
func CheckResponse(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}

// TransportError marks a failed round trip as transient unless the
// caller's context ended it.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrTransientProvider, err)
}
