package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/isbndb-books/pkg/client"
	"github.com/Sternrassler/isbndb-books/pkg/keys"
	"github.com/Sternrassler/isbndb-books/pkg/ratelimit"
	"github.com/Sternrassler/isbndb-books/pkg/store"
)

// maxBodyLog caps how much of a failed response body is logged.
const maxBodyLog = 512

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_pages_total",
		Help: "Total harvested pages by outcome",
	}, []string{"outcome"})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "isbndb_records_total",
		Help: "Total book records appended to the collection",
	})

	rotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_key_rotations_total",
		Help: "Total key rotations by reason",
	}, []string{"reason"})

	harvestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "isbndb_harvest_duration_seconds",
		Help:    "Duration of a full harvest run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

// PageFetcher fetches a single page with a given key.
type PageFetcher interface {
	FetchPage(ctx context.Context, key keys.Key, q client.Query, page int) client.PageResult
}

// KeySource hands out API keys.
type KeySource interface {
	Current(ctx context.Context) (keys.Key, bool, error)
	Next(ctx context.Context) (keys.Key, error)
}

// Config holds harvest configuration.
type Config struct {
	// Query is the search sent with every page.
	Query client.Query

	// FirstPage and LastPage bound the inclusive page range.
	FirstPage int
	LastPage  int

	// StopOnEmpty ends the run at the first page with an empty data array.
	StopOnEmpty bool
}

// DefaultConfig returns the Manning publisher search over pages 1..20.
func DefaultConfig() Config {
	return Config{
		Query:     client.Query{Q: "Manning", Index: "publisher_name"},
		FirstPage: 1,
		LastPage:  20,
	}
}

// Validate checks the page range.
func (c Config) Validate() error {
	if c.FirstPage < 1 {
		return fmt.Errorf("first page must be >= 1 (got %d)", c.FirstPage)
	}
	if c.LastPage < c.FirstPage {
		return fmt.Errorf("last page must be >= first page (got %d..%d)", c.FirstPage, c.LastPage)
	}
	return nil
}

// Report summarizes a harvest run.
type Report struct {
	PagesRequested int
	PagesSucceeded int
	PagesFailed    int
	PagesFromCache int
	Records        int
	Rotations      int
	StoppedEarly   bool
	LastPage       int
	Duration       time.Duration
}

// Harvester walks a page range and fills a collection.
type Harvester struct {
	fetcher PageFetcher
	keys    KeySource
	tracker *ratelimit.Tracker
	config  Config
	logger  zerolog.Logger
}

// New creates a harvester. A nil tracker disables proactive rotation.
func New(fetcher PageFetcher, keySource KeySource, tracker *ratelimit.Tracker, cfg Config, logger zerolog.Logger) (*Harvester, error) {
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if keySource == nil {
		return nil, errors.New("key source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Harvester{
		fetcher: fetcher,
		keys:    keySource,
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Run fetches every page in the configured range and appends the records
// to books. The returned collection holds whatever was gathered, also when
// err is non-nil.
func (h *Harvester) Run(ctx context.Context, books store.Collection) (store.Collection, Report, error) {
	start := time.Now()
	var report Report
	defer func() {
		report.Duration = time.Since(start)
		harvestDuration.Observe(report.Duration.Seconds())
	}()

	key, err := h.initialKey(ctx)
	if err != nil {
		return books, report, err
	}

	h.logger.Info().
		Str("query", h.config.Query.Q).
		Str("index", h.config.Query.IndexOrDefault()).
		Int("first_page", h.config.FirstPage).
		Int("last_page", h.config.LastPage).
		Str("key_label", key.Label).
		Msg("Starting harvest")

	for page := h.config.FirstPage; page <= h.config.LastPage; page++ {
		if err := ctx.Err(); err != nil {
			return books, report, fmt.Errorf("harvest cancelled at page %d: %w", page, err)
		}

		res, next, err := h.fetchWithRotation(ctx, key, page, &report)
		key = next
		if err != nil {
			return books, report, err
		}
		report.LastPage = page

		if res.Outcome == client.OutcomeRecoverable {
			report.PagesFailed++
			pagesTotal.WithLabelValues(string(client.OutcomeRecoverable)).Inc()
			h.logPageError(res)
			continue
		}

		report.PagesSucceeded++
		report.Records += len(res.Records)
		if res.FromCache {
			report.PagesFromCache++
		}
		pagesTotal.WithLabelValues(string(client.OutcomeSuccess)).Inc()
		recordsTotal.Add(float64(len(res.Records)))
		books = books.Append(res.Records...)

		h.logger.Debug().
			Int("page", page).
			Int("records", len(res.Records)).
			Bool("from_cache", res.FromCache).
			Msg("Page harvested")

		if len(res.Records) == 0 && h.config.StopOnEmpty {
			report.StoppedEarly = true
			h.logger.Info().Int("page", page).Msg("Empty page, stopping harvest")
			break
		}

		if h.tracker != nil && res.KeyStats != nil {
			h.tracker.Observe(key.Label, *res.KeyStats)
			if h.tracker.Spent(key.Label) && page < h.config.LastPage {
				key, err = h.rotate(ctx, key, "quota", &report)
				if err != nil {
					return books, report, err
				}
			}
		}
	}

	h.logger.Info().
		Int("pages_succeeded", report.PagesSucceeded).
		Int("pages_failed", report.PagesFailed).
		Int("records", report.Records).
		Int("rotations", report.Rotations).
		Int("collection_size", len(books)).
		Msg("Harvest complete")

	return books, report, nil
}

// fetchWithRotation fetches page, switching keys until the page is no
// longer rejected for the key. The returned key is the one now current.
func (h *Harvester) fetchWithRotation(ctx context.Context, key keys.Key, page int, report *Report) (client.PageResult, keys.Key, error) {
	for {
		report.PagesRequested++
		res := h.fetcher.FetchPage(ctx, key, h.config.Query, page)

		switch res.Outcome {
		case client.OutcomeSuccess, client.OutcomeRecoverable:
			return res, key, nil

		case client.OutcomeRotateKey:
			pagesTotal.WithLabelValues(string(client.OutcomeRotateKey)).Inc()
			h.logger.Warn().
				Err(res.Err).
				Int("page", page).
				Str("key_label", key.Label).
				Msg("Key rejected, rotating")

			next, err := h.rotate(ctx, key, "rejected", report)
			if err != nil {
				return res, key, err
			}
			key = next

		case client.OutcomeFatal:
			pagesTotal.WithLabelValues(string(client.OutcomeFatal)).Inc()
			return res, key, fmt.Errorf("page %d: %w", page, res.Err)

		default:
			return res, key, fmt.Errorf("page %d: unknown outcome %q", page, res.Outcome)
		}
	}
}

// rotate selects the next key.
func (h *Harvester) rotate(ctx context.Context, from keys.Key, reason string, report *Report) (keys.Key, error) {
	next, err := h.keys.Next(ctx)
	if err != nil {
		return from, fmt.Errorf("rotate from key %q: %w", from.Label, err)
	}

	report.Rotations++
	rotationsTotal.WithLabelValues(reason).Inc()
	h.logger.Info().
		Str("from_key", from.Label).
		Str("to_key", next.Label).
		Str("reason", reason).
		Msg("Rotated API key")
	return next, nil
}

// initialKey resumes the stored key or selects the first one.
func (h *Harvester) initialKey(ctx context.Context) (keys.Key, error) {
	key, ok, err := h.keys.Current(ctx)
	if err != nil {
		return keys.Key{}, fmt.Errorf("current key: %w", err)
	}
	if ok {
		return key, nil
	}

	key, err = h.keys.Next(ctx)
	if err != nil {
		return keys.Key{}, fmt.Errorf("select first key: %w", err)
	}
	return key, nil
}

func (h *Harvester) logPageError(res client.PageResult) {
	event := h.logger.Warn().Err(res.Err).Int("page", res.Page).Int("status_code", res.StatusCode)

	var apiErr *client.APIError
	if errors.As(res.Err, &apiErr) {
		event = event.Str("error_class", string(apiErr.ErrorClass))
	}
	if len(res.Body) > 0 {
		body := res.Body
		if len(body) > maxBodyLog {
			body = body[:maxBodyLog]
		}
		event = event.Str("body", string(body))
	}
	event.Msg("Page failed, continuing")
}
