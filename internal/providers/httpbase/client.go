// Package httpbase implements the common rate-limited, retrying HTTP transport
// shared by every provider client (C1, spec §4.1). Each provider package wraps
// a *Client with its own typed request/response methods; the wait/retry/error
// classification logic lives here exactly once.
package httpbase

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"albumscan/internal/shared"
)

// Config configures one provider's rate-limited client.
type Config struct {
	Provider     string
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RateLimit    time.Duration // minimum interval between requests
	BurstLimit   int
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Debug        bool

	// Credentials, set at construction and replaceable at runtime via
	// UpdateCredentials (spec §4.1: "credentials may be replaced at runtime").
	ClientID     string
	ClientSecret string
	Token        string
}

// Client is a per-provider HTTP client value. It is never a package-level
// singleton (spec §9's "global mutable singletons" redesign flag): callers
// construct one explicitly from configuration and pass it by reference.
type Client struct {
	httpClient *http.Client
	config     Config

	mu          sync.Mutex
	rateLimiter *rate.Limiter
	suspendedUntil time.Time
}

// New constructs a provider client from configuration.
func New(cfg Config) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
	c.rateLimiter = rate.NewLimiter(rate.Every(cfg.RateLimit), cfg.BurstLimit)
	return c
}

// UpdateCredentials replaces the client's auth credentials in place. The very
// next request issued through this client uses the new values (spec §4.1,
// testable property 10 — the historic "singleton ignored token change" bug).
func (c *Client) UpdateCredentials(clientID, clientSecret, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.ClientID = clientID
	c.config.ClientSecret = clientSecret
	c.config.Token = token
}

// Credentials returns the current credential triple.
func (c *Client) Credentials() (clientID, clientSecret, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.ClientID, c.config.ClientSecret, c.config.Token
}

// Provider returns the provider name this client speaks for.
func (c *Client) Provider() string { return c.config.Provider }

// wait blocks until the rate limiter admits a request, honoring any outstanding
// 429/Retry-After suspension (spec §4.1).
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	until := c.suspendedUntil
	c.mu.Unlock()

	if !until.IsZero() {
		if d := time.Until(until); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	return c.rateLimiter.Wait(ctx)
}

func (c *Client) suspendUntil(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.suspendedUntil) {
		c.suspendedUntil = t
	}
}

// Get performs a rate-limited GET request with exponential-backoff retry on
// transient failures (spec §4.1). Unauthorized and not-found responses are
// returned at once as a *shared.ProviderError, and other 4xx statuses as a
// permanent error. Transient failures (429, 5xx, timeouts, network errors)
// are retried; once retries run out the last error is returned wrapped.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	var body []byte
	attempt := 0

	err := shared.RetryWithBackoffForHTTPWithDebug(
		maxInt(c.config.MaxRetries, 1),
		c.config.InitialDelay,
		c.config.MaxDelay,
		func() error {
			attempt++
			b, perr := c.doOnce(ctx, path, headers)
			if perr != nil {
				return perr
			}
			body = b
			return nil
		},
		c.config.Debug,
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c *Client) doOnce(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrTimeout, Err: err}
	}

	reqURL, err := url.Parse(c.config.BaseURL + path)
	if err != nil {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrMalformed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrUnknown, Err: err}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, &shared.HTTPError{StatusCode: http.StatusGatewayTimeout, Status: "Gateway Timeout", Message: err.Error()}
		}
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrNetwork, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.suspendUntil(time.Now().Add(retryAfter))
		return nil, &shared.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Message: string(truncate(data, 200))}
	}

	if resp.StatusCode >= 500 {
		return nil, &shared.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Message: string(truncate(data, 200))}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrUnauthorized, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%s", truncate(data, 200))}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &shared.ProviderError{Provider: c.config.Provider, Kind: shared.ErrNotFound, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		// Permanent 4xx other than 429/401/403/404: no retry (spec §4.1).
		return nil, permanentError(c.config.Provider, resp.StatusCode, resp.Status, data)
	}

	return data, nil
}

// permanentError is returned directly (not as *shared.HTTPError) so
// shared.IsRetryableHTTPError never retries it.
type permanentErrorT struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *permanentErrorT) Error() string {
	return fmt.Sprintf("%s: permanent HTTP %d: %s - %s", e.Provider, e.StatusCode, e.Status, e.Message)
}

func permanentError(provider string, statusCode int, status string, body []byte) error {
	return &permanentErrorT{Provider: provider, StatusCode: statusCode, Status: status, Message: string(truncate(body, 200))}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return append(append([]byte{}, b[:n]...), []byte("...")...)
	}
	return b
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}
