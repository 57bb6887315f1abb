package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veloria/catalogsync/internal/platform/observability"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetryMax  = 4
	defaultBaseDelay = 500 * time.Millisecond
	maxErrorBodyLen  = 512
)

// Options configures a Client.
type Options struct {
	// BaseURL is prefixed to request paths that are not absolute URLs.
	BaseURL string
	// Token is sent on every request. Header selects the carrying header;
	// when empty the token goes into Authorization as a bearer credential.
	Token  string
	Header string
	// Timeout bounds a single attempt, not the whole retry budget.
	Timeout time.Duration
	// RetryMax bounds retries of transient failures per request.
	RetryMax int
	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration
	// RequestsPerSec throttles outbound calls to respect third-party API
	// rate limits. Zero disables throttling.
	RequestsPerSec float64
	// HTTPClient overrides the underlying client, used by tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client wraps http.Client with bearer auth, bounded exponential retry for
// transient failures and client-side rate limiting. Every adapter in the
// pipeline shares this behaviour instead of re-implementing it.
type Client struct {
	base     string
	token    string
	header   string
	retryMax int
	delay    time.Duration
	inner    *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewClient constructs a Client from options, applying defaults for unset
// fields.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = defaultRetryMax
	}
	delay := opts.RetryBaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	inner := opts.HTTPClient
	if inner == nil {
		inner = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		burst := int(opts.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		token:    strings.TrimSpace(opts.Token),
		header:   strings.TrimSpace(opts.Header),
		retryMax: retryMax,
		delay:    delay,
		inner:    inner,
		limiter:  limiter,
		logger:   logger,
	}
}

// HTTPClient exposes the underlying client so tests can intercept it.
func (c *Client) HTTPClient() *http.Client { return c.inner }

// DoJSON issues a request with an optional JSON body and decodes a JSON
// response into out when out is non-nil. Transient failures are retried with
// exponential backoff up to the configured budget; other failures return a
// categorised *Error immediately.
func (c *Client) DoJSON(ctx context.Context, method, path string, body any, out any) error {
	op := fmt.Sprintf("%s %s", method, path)

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = encoded
	}
	return c.do(ctx, op, method, path, "application/json", payload, out)
}

// Upload issues a request with a raw body of the given content type, for
// endpoints that take binary payloads rather than JSON documents. The JSON
// response is decoded into out when out is non-nil. Retry behaviour matches
// DoJSON.
func (c *Client) Upload(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	op := fmt.Sprintf("%s %s", method, path)
	return c.do(ctx, op, method, path, contentType, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, payload []byte, out any) error {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.base + "/" + strings.TrimLeft(path, "/")
	}

	attempt := 0
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(newTransportError(op, err))
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: build request: %w", op, err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		c.authorize(req)

		resp, err := c.inner.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(newTransportError(op, ctx.Err()))
			}
			return newTransportError(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			snippet := readErrorBody(resp.Body)
			statusErr := newStatusError(op, resp.StatusCode, fmt.Errorf("%s", snippet))
			if statusErr.IsTransient() {
				c.logger.Warn("transient http failure",
					zap.String("op", op),
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt),
				)
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%s: decode response: %w", op, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.delay
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retryMax)), ctx))
}

func (c *Client) authorize(req *http.Request) {
	if c.token == "" {
		return
	}
	if c.header != "" {
		req.Header.Set(c.header, c.token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyLen))
	if err != nil {
		return "unreadable response body"
	}
	text := observability.SanitizeLogValue(string(raw), maxErrorBodyLen)
	if text == "" {
		return "empty response body"
	}
	return text
}
