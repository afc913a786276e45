// Package gamma is a read-only client for the Polymarket Gamma API, used to
// pull the catalog of open events and their markets.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/charlie-robison/pythia/internal/resilience"
)

const defaultBaseURL = "https://gamma-api.polymarket.com"

// Event is one Polymarket event with its markets.
type Event struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Slug        string      `json:"slug"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Volume      json.Number `json:"volume"`
	Markets     []Market    `json:"markets"`
}

// Market is one tradable question under an event. OutcomePrices arrives as a
// JSON-encoded string array nested inside a string, mirroring the API.
type Market struct {
	ID            json.Number `json:"id"`
	Question      string      `json:"question"`
	Description   string      `json:"description"`
	Slug          string      `json:"slug"`
	ConditionID   string      `json:"conditionId"`
	Outcomes      string      `json:"outcomes"`
	OutcomePrices string      `json:"outcomePrices"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}

// YesPrice parses the first outcome price (the YES probability) from the
// double-encoded OutcomePrices field. Returns false when absent or
// unparseable.
func (m Market) YesPrice() (float64, bool) {
	if m.OutcomePrices == "" {
		return 0, false
	}
	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) == 0 {
		return 0, false
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// ListParams control an events page fetch.
type ListParams struct {
	Limit  int
	Offset int
	Active bool
	Closed bool
}

// Client fetches events from the Gamma API.
type Client interface {
	ListEvents(ctx context.Context, params ListParams) ([]Event, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryConfig overrides the default transient-failure retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Gamma API client. Requests are rate limited (default
// 5 req/s) and transient failures are retried with backoff.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListEvents(ctx context.Context, params ListParams) ([]Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "gamma: rate limit wait")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Event, error) {
		return c.listEventsOnce(ctx, params)
	})
}

func (c *httpClient) listEventsOnce(ctx context.Context, params ListParams) ([]Event, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	q.Set("active", strconv.FormatBool(params.Active))
	q.Set("closed", strconv.FormatBool(params.Closed))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "gamma: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "gamma: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gamma: read response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("gamma: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, eris.Wrap(err, "gamma: unmarshal events")
	}
	return events, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
