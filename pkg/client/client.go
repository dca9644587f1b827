// Package client provides the HTTP gateway to the ClinicalTrials.gov v2
// API with category-partitioned caching, retry with backoff, a shared
// rate-limit cooldown and a typed error taxonomy.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/cache"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Version is the library version reported in the default User-Agent.
const Version = "0.1.0"

// DefaultBaseURL is the versioned API root.
const DefaultBaseURL = "https://clinicaltrials.gov/api/v2"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_requests_total",
		Help: "Total upstream requests by endpoint category and status",
	}, []string{"endpoint_category", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctgov_request_duration_seconds",
		Help:    "Duration of logical requests including retries by endpoint category",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint_category"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_errors_total",
		Help: "Total failed attempts by error class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the versioned API root.
	BaseURL string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Retry. MaxRetries is the total number of attempts per request.
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
	MaxBackoff    time.Duration
	Jitter        float64 // fraction, 0 disables

	// Partitions overrides cache capacity and TTL per category.
	Partitions map[cache.Category]cache.PartitionConfig

	// RateLimit stores the shared cooldown. Nil keeps it in memory.
	RateLimit ratelimit.Store

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       30 * time.Second,
		UserAgent:     "ctgov-client/" + Version,
		MaxRetries:    3,
		BackoffBase:   1 * time.Second,
		BackoffFactor: 1.5,
		MaxBackoff:    60 * time.Second,
		Jitter:        0.2,
		Partitions:    cache.DefaultPartitions(),
	}
}

// Client is the gateway to the upstream API. It is safe for concurrent use.
type Client struct {
	config      Config
	cache       *cache.Manager
	rateLimiter *ratelimit.Tracker
	group       singleflight.Group
	logger      zerolog.Logger

	mu   sync.Mutex
	http *resty.Client // nil until first use and after Close
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.BackoffBase < 0 {
		return nil, fmt.Errorf("backoff_base must be >= 0 (got %s)", cfg.BackoffBase)
	}
	if cfg.BackoffFactor < 1 {
		return nil, fmt.Errorf("backoff_factor must be >= 1 (got %g)", cfg.BackoffFactor)
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		return nil, fmt.Errorf("jitter must be in [0, 1) (got %g)", cfg.Jitter)
	}

	cacheManager, err := cache.NewManager(cfg.Partitions)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := logging.WithComponent(base, logging.ComponentClient)

	return &Client{
		config:      cfg,
		cache:       cacheManager,
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, logging.WithComponent(base, logging.ComponentRateLimit)),
		logger:      logger,
	}, nil
}

// RequestOption customizes a single Get call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	useCache bool
}

// SkipCache bypasses the response cache for both lookup and store.
func SkipCache() RequestOption {
	return func(o *requestOptions) {
		o.useCache = false
	}
}

// Get performs a GET request against endpoint and returns the decoded JSON
// body. Cached bodies are shared between callers and must not be mutated.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, opts ...RequestOption) (any, error) {
	o := requestOptions{useCache: true}
	for _, opt := range opts {
		opt(&o)
	}

	key := cache.CacheKey{Endpoint: endpoint, Params: params}
	category := key.Category()

	if !o.useCache {
		return c.fetch(ctx, endpoint, params, category)
	}

	if entry, ok := c.cache.Get(key); ok {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("category", string(category)).
			Dur("age", entry.Age()).
			Msg("Cache hit")
		return entry.Value, nil
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("category", string(category)).
		Msg("Cache miss")

	// Concurrent identical misses share one upstream call. The call runs
	// detached from any single caller's cancellation; each caller stops
	// waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.Digest(), func() (any, error) {
		body, err := c.fetch(detached, endpoint, params, category)
		if err != nil {
			return nil, err
		}
		entry := c.cache.Set(key, body)
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("ttl", entry.TTL()).
			Msg("Cached response")
		return body, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Shared in-flight request")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, cancelled(ctx)
	}
}

// fetch runs the retry loop for one logical request.
func (c *Client) fetch(ctx context.Context, endpoint string, params map[string]string, category cache.Category) (any, error) {
	att := attempt{requestID: uuid.NewString()}
	logger := c.logger.With().
		Str("request_id", att.requestID).
		Str("endpoint", endpoint).
		Str("category", string(category)).
		Logger()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(category)).Observe(time.Since(startTime).Seconds())
	}()

	for ; att.number < c.config.MaxRetries; att.number++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, cancelled(ctx)
		}

		logger.Debug().Int("attempt", att.number+1).Msg("Executing request")

		body, apiErr, retryAfter := c.do(ctx, endpoint, params, category)
		if apiErr == nil {
			if err := c.rateLimiter.RecordSuccess(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to record rate limit recovery")
			}
			if att.number > 0 {
				logger.Info().Int("attempt", att.number+1).Msg("Request succeeded after retry")
			}
			return body, nil
		}

		apiErr.Attempts = att.number + 1
		att.lastErr = apiErr
		errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		if !apiErr.ErrorClass.Retryable() {
			logger.Debug().
				Int("status_code", apiErr.StatusCode).
				Str("error_class", string(apiErr.ErrorClass)).
				Msg("Terminal upstream error")
			return nil, apiErr
		}
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}

		delay := c.backoff(apiErr.ErrorClass, att.number, retryAfter)
		if apiErr.ErrorClass == ErrorClassRateLimit {
			if _, err := c.rateLimiter.RecordRateLimit(ctx, delay); err != nil {
				logger.Warn().Err(err).Msg("Failed to record rate limit")
			}
		}

		// No wait after the final attempt
		if att.number+1 >= c.config.MaxRetries {
			break
		}

		retriesTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(apiErr.ErrorClass)).Observe(delay.Seconds())

		logger.Warn().
			Err(apiErr).
			Int("attempt", att.number+1).
			Str("error_class", string(apiErr.ErrorClass)).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, delay); err != nil {
			logger.Warn().Int("attempt", att.number+1).Msg("Context cancelled during retry backoff")
			return nil, err
		}
	}

	retryExhaustedTotal.WithLabelValues(string(att.lastErr.ErrorClass)).Inc()
	logger.Error().
		Err(att.lastErr).
		Int("max_attempts", c.config.MaxRetries).
		Msg("Retry attempts exhausted")

	return nil, att.lastErr
}

// do executes a single HTTP attempt. A non-nil APIError reports the failure;
// retryAfter is set for responses carrying a Retry-After header.
func (c *Client) do(ctx context.Context, endpoint string, params map[string]string, category cache.Category) (any, *APIError, time.Duration) {
	resp, err := c.session().R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		requestsTotal.WithLabelValues(string(category), "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}, 0
	}

	status := resp.StatusCode()
	requestsTotal.WithLabelValues(string(category), strconv.Itoa(status)).Inc()

	if status >= 400 {
		return nil, &APIError{
			ErrorClass: classifyStatus(status),
			StatusCode: status,
			Endpoint:   endpoint,
			Message:    errorMessage(resp),
		}, parseRetryAfter(resp.Header().Get("Retry-After"))
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassDecode,
			StatusCode: status,
			Endpoint:   endpoint,
			Message:    "invalid JSON body",
			Err:        err,
		}, 0
	}
	return body, nil, 0
}

// errorMessage extracts a short description from an error response.
func errorMessage(resp *resty.Response) string {
	msg := strings.TrimSpace(string(resp.Body()))
	if msg == "" {
		return resp.Status()
	}
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// session returns the shared HTTP session, creating it on first use.
func (c *Client) session() *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http == nil {
		c.http = resty.New().
			SetBaseURL(strings.TrimRight(c.config.BaseURL, "/")).
			SetTimeout(c.config.Timeout).
			SetHeader("User-Agent", c.config.UserAgent).
			SetHeader("Accept", "application/json").
			SetRetryCount(0)
		c.logger.Debug().Str("base_url", c.config.BaseURL).Msg("HTTP session opened")
	}
	return c.http
}

// Close releases the HTTP session. It is safe to call repeatedly and on a
// client that never issued a request; the next call opens a new session.
// The cache keeps its expiry goroutines, one per partition, until the
// process exits.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http == nil {
		return nil
	}
	c.http.GetClient().CloseIdleConnections()
	c.http = nil
	c.logger.Debug().Msg("HTTP session closed")
	return nil
}

// ClearCache empties every cache partition.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.logger.Info().Msg("Response cache cleared")
}

// CacheStats returns a snapshot of the cache partitions.
func (c *Client) CacheStats() []cache.PartitionStats {
	return c.cache.Stats()
}

// RateLimitState returns the current shared cooldown.
func (c *Client) RateLimitState(ctx context.Context) (ratelimit.State, error) {
	return c.rateLimiter.GetState(ctx)
}
