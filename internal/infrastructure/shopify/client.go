package shopify

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// Request describes one outbound API call. The body is held as bytes so the
// request can be rebuilt on every retry attempt.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
	// AccessToken, when set, is sent in the platform credential header
	AccessToken string
}

// RateLimitedClient is the outbound HTTP client for the platform API. It
// retries capacity (429) and transient (5xx, transport) failures with bounded
// exponential backoff and never retries semantic errors.
type RateLimitedClient struct {
	httpClient  *http.Client
	maxRetries  int
	backoffBase float64
	logger      *zap.Logger

	// sleep is swappable so tests can observe the backoff schedule
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimitedClient creates a client from the adapter configuration
func NewRateLimitedClient(cfg *Config, logger *zap.Logger) *RateLimitedClient {
	return &RateLimitedClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBaseSeconds,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Do executes the request with up to maxRetries attempts.
//
//   - 429: the rate-limit diagnostic headers are logged; remaining attempts
//     back off and retry, and when attempts run out the 429 response itself is
//     returned.
//   - 5xx and transport errors: same backoff schedule; exhaustion returns
//     ErrUpstreamExhausted wrapping the last failure.
//   - Any other status (2xx, 4xx other than 429) returns immediately.
func (c *RateLimitedClient) Do(ctx context.Context, req *Request) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.send(ctx, req)
		if err != nil {
			lastErr = err
			if attempt == c.maxRetries {
				return nil, fmt.Errorf("%w: %v", connector.ErrUpstreamExhausted, err)
			}
			c.logger.Warn("Platform request failed, retrying",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("Platform rate limit hit",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.String("call_limit", resp.Header.Get(rateLimitHeader)),
				zap.String("retry_after", resp.Header.Get("Retry-After")),
			)
			if attempt == c.maxRetries {
				// Out of attempts: hand the 429 back as-is.
				return resp, nil
			}
			resp.Body.Close()
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}

		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("shopify: upstream returned HTTP %d", resp.StatusCode)
			if attempt == c.maxRetries {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %v", connector.ErrUpstreamExhausted, lastErr)
			}
			resp.Body.Close()
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}

		default:
			// Semantic outcomes (success, auth failure, not-found, ...) are
			// never retried.
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", connector.ErrUpstreamExhausted, lastErr)
}

// send performs a single attempt
func (c *RateLimitedClient) send(ctx context.Context, req *Request) (*http.Response, error) {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", userAgent)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.AccessToken != "" {
		httpReq.Header.Set(accessTokenHeader, req.AccessToken)
	}

	return c.httpClient.Do(httpReq)
}

// backoff sleeps base^attempt seconds, honoring context cancellation
func (c *RateLimitedClient) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(math.Pow(c.backoffBase, float64(attempt)) * float64(time.Second))
	return c.sleep(ctx, delay)
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
