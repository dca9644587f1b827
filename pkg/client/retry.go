package client

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctgov_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// attempt carries the retry state of one logical request. It is created
// per call and never shared.
type attempt struct {
	requestID string
	number    int // 0-based
	lastErr   *APIError
}

// backoff returns the wait before the attempt following attempt n.
// Rate-limit responses use the same curve shifted two steps up, and honour
// a larger Retry-After.
func (c *Client) backoff(class ErrorClass, n int, retryAfter time.Duration) time.Duration {
	exp := n
	if class == ErrorClassRateLimit {
		exp = n + 2
	}
	d := time.Duration(float64(c.config.BackoffBase) * math.Pow(c.config.BackoffFactor, float64(exp)))

	if j := c.config.Jitter; j > 0 {
		d = time.Duration(float64(d) * (1 - j + rand.Float64()*2*j))
	}
	if class == ErrorClassRateLimit && retryAfter > d {
		d = retryAfter
	}
	if c.config.MaxBackoff > 0 && d > c.config.MaxBackoff {
		d = c.config.MaxBackoff
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cancelled(ctx)
	case <-timer.C:
		return nil
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
}

// parseRetryAfter reads a Retry-After header given either in seconds or
// as an HTTP date. Invalid values yield 0.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
