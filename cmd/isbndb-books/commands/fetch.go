package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/isbndb-books/internal/config"
	"github.com/Sternrassler/isbndb-books/pkg/cache"
	"github.com/Sternrassler/isbndb-books/pkg/client"
	"github.com/Sternrassler/isbndb-books/pkg/keys"
	"github.com/Sternrassler/isbndb-books/pkg/logging"
	"github.com/Sternrassler/isbndb-books/pkg/metrics"
	"github.com/Sternrassler/isbndb-books/pkg/pagination"
	"github.com/Sternrassler/isbndb-books/pkg/ratelimit"
	"github.com/Sternrassler/isbndb-books/pkg/store"
)

func newFetchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [--query <q>] [--from <n>] [--to <n>]",
		Short: "Fetches a range of search result pages and appends the books to the collection file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFetch(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("keys-file", "", "The YAML key file (default ~/.isbndb.yml).")
	f.String("endpoint", client.DefaultEndpointTemplate, "Endpoint template; {key} is replaced by the API key.")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header.")
	f.Duration("timeout", 30*time.Second, "Per request timeout.")
	f.StringP("query", "q", config.DefaultQuery, "Search term.")
	f.StringP("index", "i", config.DefaultIndex, "Index searched (combined, title, author_name, publisher_name, ...).")
	f.Int("from", config.DefaultFirstPage, "First page.")
	f.Int("to", config.DefaultLastPage, "Last page, inclusive.")
	f.Bool("stop-on-empty", false, "Stop at the first page without records.")
	f.Int("quota-threshold", ratelimit.DefaultThreshold, "Rotate once a key reports this many calls left or fewer.")
	f.String("redis-url", "", "Redis URL for the key cursor and page cache.")
	f.Duration("cursor-ttl", 0, "Expiry of the stored key cursor (0 keeps it).")
	f.Duration("cache-ttl", cache.DefaultTTL, "Expiry of cached pages.")
	f.Bool("no-cache", false, "Do not cache pages in Redis.")
	f.String("metrics-addr", "", "Serve /metrics and /health on this address during the run.")

	return cmd
}

func (a *app) runFetch(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	keyPath, err := cfg.KeyFile()
	if err != nil {
		return err
	}
	keySet, err := keys.Load(keyPath)
	if err != nil {
		if errors.Is(err, keys.ErrKeyFileNotFound) {
			logger.Error().Str("path", keyPath).Msg("Key file not found")
		}
		return err
	}
	logger.Info().Str("path", keyPath).Int("keys", keySet.Len()).Msg("Loaded API keys")

	js := store.New(cfg.Store.File)
	books, err := js.Load()
	if err != nil {
		return err
	}
	logger.Info().Str("file", js.Path()).Int("books", len(books)).Msg("Loaded collection")

	var (
		cursor keys.CursorStore
		pages  *cache.Manager
	)
	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		cursor = keys.NewRedisStore(rdb, cfg.Redis.CursorTTL)
		if !cfg.Redis.NoCache {
			pages = cache.NewManager(rdb, cfg.Redis.CacheTTL)
		}
		logger.Info().Bool("page_cache", pages != nil).Msg("Connected to Redis")
	}

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logging.NewLogger("metrics"))
		if err != nil {
			return err
		}
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Cache = pages
	isbn, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	rotator := keys.NewRotator(keySet, cursor, logging.NewLogger("keys"))
	tracker := ratelimit.NewTracker(cfg.Harvest.QuotaThreshold, logging.NewLogger("ratelimit"))

	harvester, err := pagination.New(isbn, rotator, tracker, pagination.Config{
		Query:       client.Query{Q: cfg.Harvest.Query, Index: cfg.Harvest.Index},
		FirstPage:   cfg.Harvest.FirstPage,
		LastPage:    cfg.Harvest.LastPage,
		StopOnEmpty: cfg.Harvest.StopOnEmpty,
	}, logging.NewLogger("harvester"))
	if err != nil {
		return err
	}

	books, report, runErr := harvester.Run(ctx, books)

	// Partial results are saved before a failed run is reported.
	if err := js.Save(books); err != nil {
		return errors.Join(runErr, err)
	}
	logger.Info().
		Str("file", js.Path()).
		Int("books", len(books)).
		Int("new_records", report.Records).
		Int("pages_failed", report.PagesFailed).
		Dur("duration", report.Duration).
		Msg("Saved collection")

	if runErr != nil {
		logger.Error().Err(runErr).Int("last_page", report.LastPage).Msg("Harvest aborted")
		return runErr
	}
	return nil
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}
