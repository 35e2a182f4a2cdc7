// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries a fresh uuid on every attempt.
	RequestIDHeader = "X-Request-ID"

	maxRetryDelay  = 10 * time.Second
	maxDetailBytes = 512
)

// Response is a successful (2xx) HTTP response with its body read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
}

// Client posts JSON bodies to the forms service. It owns the timeout, retry,
// throttling and authentication concerns so callers only see a body or a
// TRANSPORT_FAILURE error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     oauth2.TokenSource
	log        logger.Logger
	maxRetries int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource attaches "Authorization: Bearer" from ts to every request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a transport from the rpc section of the config.
func NewClient(cfg config.RPCConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		log:        logger.NewNoOpLogger(),
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    config.GetDuration(cfg.RetryBackoff),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post JSON-encodes body and sends it to baseURL+path.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewRequestEncodingError(path, err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			metrics.TransportRetries.Inc()
			c.log.Warn("Retrying request", map[string]interface{}{
				"url":     url,
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.NewTransportError(0, "cancelled while waiting to retry", ctx.Err())
			}
		}

		resp, serr := c.do(ctx, url, payload)
		if serr == nil {
			return resp, nil
		}
		lastErr = serr

		if !serr.Retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, payload []byte) (*Response, *errors.StandardError) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nonRetryable(errors.NewTransportError(0, "rate limiter", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nonRetryable(errors.NewTransportError(0, "failed to create request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, nonRetryable(errors.NewTransportError(0, "failed to obtain access token", err))
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(0, "failed to execute request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(0, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewTransportError(resp.StatusCode, truncate(data), nil)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Data:       data,
	}, nil
}

func nonRetryable(e *errors.StandardError) *errors.StandardError {
	e.Retryable = false
	return e
}

func truncate(b []byte) string {
	if len(b) <= maxDetailBytes {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes)", b[:maxDetailBytes], len(b))
}
