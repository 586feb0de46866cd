// Package client fetches single pages of ISBNdb v2 book search results and
// reports each one as an explicit PageResult.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/isbndb-books/pkg/cache"
	"github.com/Sternrassler/isbndb-books/pkg/keys"
	"github.com/Sternrassler/isbndb-books/pkg/ratelimit"
)

const (
	// KeyPlaceholder marks where the API key goes in the endpoint template.
	KeyPlaceholder = "{key}"

	// DefaultEndpointTemplate is the ISBNdb v2 books search endpoint.
	DefaultEndpointTemplate = "http://isbndb.com/api/v2/json/" + KeyPlaceholder + "/books"

	// DefaultIndex is the i parameter used when a query names none.
	DefaultIndex = "combined"
)

// Prometheus metrics for page requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_requests_total",
		Help: "Total ISBNdb page requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "isbndb_request_duration_seconds",
		Help:    "ISBNdb page request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_errors_total",
		Help: "Total ISBNdb page errors by class",
	}, []string{"class"})
)

// Outcome tells the caller what to do after a page fetch.
type Outcome string

const (
	// OutcomeSuccess: records are valid and should be appended.
	OutcomeSuccess Outcome = "success"

	// OutcomeRecoverable: the page failed; log it and move on.
	OutcomeRecoverable Outcome = "recoverable"

	// OutcomeRotateKey: the key is unusable; switch keys and refetch.
	OutcomeRotateKey Outcome = "rotate_key"

	// OutcomeFatal: stop the run.
	OutcomeFatal Outcome = "fatal"
)

// Query is the search half of a page request.
type Query struct {
	// Q is the search term.
	Q string

	// Index is the field searched; empty means DefaultIndex.
	Index string
}

// IndexOrDefault returns Index, or DefaultIndex when empty.
func (q Query) IndexOrDefault() string {
	if strings.TrimSpace(q.Index) == "" {
		return DefaultIndex
	}
	return q.Index
}

// PageResult is the typed outcome of one page fetch.
type PageResult struct {
	Page    int
	Outcome Outcome

	// Records holds the data array in response order on success.
	Records []json.RawMessage

	// KeyStats is set when a live response carried keystats.
	KeyStats *ratelimit.KeyStats

	// FromCache is true when the page came from the page cache.
	FromCache bool

	// StatusCode is the HTTP status, 0 without a response.
	StatusCode int

	// Body is the raw response body, kept for diagnostics.
	Body []byte

	// Err is an *APIError for every outcome but success.
	Err error
}

// Client fetches ISBNdb pages.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// EndpointTemplate is the endpoint URL with KeyPlaceholder where the
	// API key goes.
	EndpointTemplate string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Cache is an optional page cache.
	Cache *cache.Manager
}

// DefaultConfig returns the ISBNdb v2 endpoint with a 30 second timeout.
func DefaultConfig() Config {
	return Config{
		EndpointTemplate: DefaultEndpointTemplate,
		UserAgent:        "isbndb-books/0.1.0",
		Timeout:          30 * time.Second,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if !strings.Contains(cfg.EndpointTemplate, KeyPlaceholder) {
		return nil, fmt.Errorf("endpoint template must contain %s", KeyPlaceholder)
	}

	sample := strings.ReplaceAll(cfg.EndpointTemplate, KeyPlaceholder, "key")
	u, err := url.Parse(sample)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint template must be an http(s) URL (got %q)", cfg.EndpointTemplate)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		config:     cfg,
		logger:     log.With().Str("component", "isbndb-client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetLogger replaces the component logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// PageURL builds the request URL for one page.
func (c *Client) PageURL(key keys.Key, q Query, page int) string {
	return c.pageURL(url.PathEscape(key.Secret), q, page)
}

// pageURL fills the template with an already escaped key segment.
func (c *Client) pageURL(keySegment string, q Query, page int) string {
	endpoint := strings.ReplaceAll(c.config.EndpointTemplate, KeyPlaceholder, keySegment)

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("i", q.IndexOrDefault())
	params.Set("p", strconv.Itoa(page))
	params.Set("opt", "keystats")

	return endpoint + "?" + params.Encode()
}

// pageResponse is the envelope of a books search response.
type pageResponse struct {
	Data     *[]json.RawMessage `json:"data"`
	KeyStats json.RawMessage    `json:"keystats"`
	Error    string             `json:"error"`
}

// FetchPage performs one GET for page with key and classifies the result.
func (c *Client) FetchPage(ctx context.Context, key keys.Key, q Query, page int) PageResult {
	cacheKey := cache.PageKey{Query: q.Q, Index: q.IndexOrDefault(), Page: page}

	// Step 1: Check Cache
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			res := c.parseBody(page, http.StatusOK, entry.Data)
			if res.Outcome == OutcomeSuccess {
				res.FromCache = true
				res.KeyStats = nil
				c.logger.Debug().Int("page", page).Int("records", len(res.Records)).Msg("Page served from cache")
				return res
			}
			// A cached body that no longer parses is dropped and refetched.
			_ = c.cache.Delete(ctx, cacheKey)
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Int("page", page).Msg("Cache get error")
		}
	}

	// Step 2: Build Request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(key, q, page), nil)
	if err != nil {
		return c.failure(page, 0, nil, ErrorClassRequest, "create request", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Int("page", page).
		Str("key_label", key.Label).
		Str("url", c.pageURL(key.Masked(), q, page)).
		Msg("Fetching page")

	// Step 3: Execute
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		if ctx.Err() != nil {
			return c.failure(page, 0, nil, ErrorClassRequest, "request cancelled", ctx.Err())
		}
		return c.failure(page, 0, nil, ErrorClassNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return c.failure(page, resp.StatusCode, body, ErrorClassRequest, "request cancelled", ctx.Err())
		}
		return c.failure(page, resp.StatusCode, body, ErrorClassNetwork, "read body", err)
	}

	// Step 4: Classify HTTP errors
	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		return c.failure(page, resp.StatusCode, body, class, resp.Status, nil)
	}

	// Step 5: Parse and cache
	res := c.parseBody(page, resp.StatusCode, body)
	if res.Outcome == OutcomeSuccess && c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, c.cache.TTL())); err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("Failed to cache page")
		}
	}
	return res
}

// parseBody decodes a 200 body into a PageResult.
func (c *Client) parseBody(page, status int, body []byte) PageResult {
	var env pageResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return c.failure(page, status, body, ErrorClassDecode, "decode response", err)
	}

	if env.Error != "" {
		return c.failure(page, status, body, classifyAPIError(env.Error), env.Error, nil)
	}
	if env.Data == nil {
		return c.failure(page, status, body, ErrorClassDecode, "decode response", ErrNoData)
	}

	res := PageResult{
		Page:       page,
		Outcome:    OutcomeSuccess,
		Records:    *env.Data,
		StatusCode: status,
		Body:       body,
	}

	if len(env.KeyStats) > 0 && string(env.KeyStats) != "null" {
		stats, err := ratelimit.ParseKeyStats(env.KeyStats)
		if err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("Ignoring malformed keystats")
		} else {
			res.KeyStats = &stats
		}
	}

	return res
}

// failure builds a non-success PageResult and records the error metric.
func (c *Client) failure(page, status int, body []byte, class ErrorClass, msg string, err error) PageResult {
	errorsTotal.WithLabelValues(string(class)).Inc()
	return PageResult{
		Page:       page,
		Outcome:    outcomeFor(class),
		StatusCode: status,
		Body:       body,
		Err: &APIError{
			Page:       page,
			StatusCode: status,
			ErrorClass: class,
			Message:    msg,
			Err:        err,
		},
	}
}

// classifyStatus categorizes a non-200 HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return ErrorClassKey
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classifyAPIError categorizes the error text of a 200 response. ISBNdb
// reports spent and invalid keys this way rather than with a status code.
func classifyAPIError(msg string) ErrorClass {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "limit") || strings.Contains(lower, "api key") || strings.Contains(lower, "access key") {
		return ErrorClassKey
	}
	return ErrorClassAPI
}
