// Package solvedac implements the solved.ac API client.
// It reads a user's profile and solved problems; the solved count feeds the
// progress ledger and the full profile feeds the challenge page.
package solvedac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/circuitbreaker"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the public solved.ac API.
const DefaultBaseURL = "https://solved.ac/api/v3"

// ClientConfig contains configuration for the solved.ac client.
type ClientConfig struct {
	// BaseURL is the API base URL without trailing slash.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxAttempts is the number of tries per call, including the first.
	MaxAttempts int

	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the circuit.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	// RequestsPerSecond and Burst bound the outgoing request rate.
	RequestsPerSecond float64
	Burst             int

	// Logger for structured logging
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return ClientConfig{
		BaseURL:           baseURL,
		UserAgent:         "dororo-lms/1.0",
		Timeout:           3 * time.Second,
		MaxAttempts:       2,
		RetryBaseDelay:    200 * time.Millisecond,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
		RequestsPerSecond: 4,
		Burst:             8,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the solved.ac API client.
// Concurrent lookups of the same handle share one upstream request.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	group      singleflight.Group
}

// NewClient creates a new solved.ac client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig(config.BaseURL)
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	config.BaseURL = strings.TrimRight(defaults.BaseURL, "/")
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	log := config.Logger.With(logger.Component("solvedac_client"))

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}

	c.breaker = circuitbreaker.SolvedAcBreaker(
		config.BreakerThreshold,
		config.BreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		// a missing user is an answer, not an outage
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, shared.ErrSolvedUserNotFound)
		}),
	)

	c.retrier = retry.SolvedAcRetrier(config.MaxAttempts, config.RetryBaseDelay,
		func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying solved.ac request",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		},
	)
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// USER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetUser fetches /user/show for handle.
// Returns ErrSolvedUserNotFound when solved.ac has no such user.
func (c *Client) GetUser(ctx context.Context, handle string) (*UserDTO, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, shared.ErrNoHandleConfigured
	}

	v, err, dup := c.group.Do("user:"+handle, func() (interface{}, error) {
		return c.fetchUser(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	if dup {
		c.logger.Debug("solved.ac user lookup shared", logger.Handle(handle))
	}

	user := *v.(*UserDTO)
	return &user, nil
}

// SolvedCount returns the total solved counter of handle.
// Negative values are reported as zero.
func (c *Client) SolvedCount(ctx context.Context, handle string) (int, error) {
	user, err := c.GetUser(ctx, handle)
	if err != nil {
		return 0, err
	}
	if user.SolvedCount < 0 {
		return 0, nil
	}
	return user.SolvedCount, nil
}

func (c *Client) fetchUser(ctx context.Context, handle string) (*UserDTO, error) {
	params := url.Values{}
	params.Set("handle", handle)

	start := time.Now()
	body, err := c.doRequest(ctx, "/user/show", params)
	if err != nil {
		c.logger.Warn("solved.ac user lookup failed",
			logger.Handle(handle),
			logger.Latency(time.Since(start)),
			logger.Err(err),
		)
		return nil, err
	}

	user, found, err := decodeUser(body)
	if err != nil {
		return nil, shared.ErrSolvedSourceInvalidResponse.Wrap(err)
	}
	if !found {
		return nil, shared.ErrSolvedUserNotFound
	}

	c.logger.Debug("solved.ac user fetched",
		logger.Handle(handle),
		logger.Int("solved_count", user.SolvedCount),
		logger.Latency(time.Since(start)),
	)
	return user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// TopSolvedProblems returns up to limit problems solved by handle, hardest first.
func (c *Client) TopSolvedProblems(ctx context.Context, handle string, limit int) ([]ProblemDTO, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || limit <= 0 {
		return []ProblemDTO{}, nil
	}

	params := url.Values{}
	params.Set("query", "solved_by:"+handle)
	params.Set("sort", "level")
	params.Set("direction", "desc")
	params.Set("page", "1")

	body, err := c.doRequest(ctx, "/search/problem", params)
	if err != nil {
		return nil, err
	}

	var result ProblemSearchDTO
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, shared.ErrSolvedSourceInvalidResponse.Wrap(err)
	}

	items := result.Items
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []ProblemDTO{}
	}
	return items, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET with rate limiting, circuit breaking and retries.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var body []byte

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = retry.DoWithData(ctx, c.retrier, func(ctx context.Context) ([]byte, error) {
			return c.doSingleRequest(ctx, path, params)
		})
		return err
	})

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return nil, shared.ErrSolvedSourceUnavailable.Wrap(err)
	case err != nil:
		return nil, err
	}
	return body, nil
}

// doSingleRequest performs one HTTP request and classifies failures.
// Transient failures come back wrapped in retry.Retryable.
func (c *Client) doSingleRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(shared.ErrSolvedSourceRateLimited.Wrap(err))
	}

	fullURL := c.config.BaseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, retry.Retryable(shared.ErrSolvedSourceTimeout.Wrap(err))
		}
		return nil, retry.Retryable(shared.ErrSolvedSourceUnavailable.Wrap(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retryable(shared.ErrSolvedSourceUnavailable.Wrap(fmt.Errorf("read response: %w", err)))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(shared.ErrSolvedUserNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		err := fmt.Errorf("status 429, retry after %s", retryAfter(resp.Header.Get("Retry-After")))
		return nil, retry.Permanent(shared.ErrSolvedSourceRateLimited.Wrap(err))
	case resp.StatusCode >= 500:
		return nil, retry.Retryable(shared.ErrSolvedSourceUnavailable.Wrap(fmt.Errorf("status %d", resp.StatusCode)))
	default:
		return nil, retry.Permanent(shared.ErrSolvedSourceUnavailable.Wrap(fmt.Errorf("status %d", resp.StatusCode)))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryAfter(header string) time.Duration {
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Minute
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// BreakerState returns the circuit breaker state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
