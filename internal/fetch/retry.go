package fetch

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"
)

// retryPolicy decides whether a failed request should be attempted again
// and how long to wait before doing so.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
	limit      time.Duration
}

func newRetryPolicy(maxRetries int, base, limit time.Duration) *retryPolicy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if limit <= 0 {
		limit = 10 * time.Second
	}
	return &retryPolicy{maxRetries: maxRetries, base: base, limit: limit}
}

// shouldRetry reports whether the attempt should be repeated. Network
// errors, rate limiting and server-side failures are transient; client
// errors are not.
func (p *retryPolicy) shouldRetry(err error, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// backoff returns the jittered exponential delay for the given attempt.
func (p *retryPolicy) backoff(attempt int) time.Duration {
	delay := p.base << uint(attempt)
	if delay > p.limit {
		delay = p.limit
	}
	jitter := delay / 4
	if jitter > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(jitter)))
		if err == nil {
			delay += time.Duration(n.Int64())
		}
	}
	return delay
}
