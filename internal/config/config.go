package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/isbndb-books/pkg/client"
	"github.com/Sternrassler/isbndb-books/pkg/keys"
	"github.com/Sternrassler/isbndb-books/pkg/logging"
)

type (
	Config struct {
		Keys
		API
		Harvest
		Store
		Redis
		Log
		Metrics
		Stats
	}

	Keys struct {
		File string // Empty means ~/.isbndb.yml
	}
	API struct {
		EndpointTemplate string
		UserAgent        string
		Timeout          time.Duration
	}
	Harvest struct {
		Query          string
		Index          string
		FirstPage      int
		LastPage       int
		StopOnEmpty    bool
		QuotaThreshold int // Rotate once a key has this many calls left or fewer
	}
	Store struct {
		File string
	}
	Redis struct {
		URL       string        // Empty disables the Redis cursor and page cache
		CursorTTL time.Duration // 0 keeps the cursor until overwritten
		CacheTTL  time.Duration
		NoCache   bool
	}
	Log struct {
		Level  string
		Pretty bool
	}
	Metrics struct {
		Addr string // Empty disables the metrics server
	}
	Stats struct {
		Top int
	}
)

// LoadEnvFiles loads .env and .env.local when present. Variables already
// set in the environment win.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// NewViper returns a viper instance with defaults and ISBNDB_ env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("keys_file", "")

	v.SetDefault("endpoint", client.DefaultEndpointTemplate)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("timeout", "30s")

	v.SetDefault("query", DefaultQuery)
	v.SetDefault("index", DefaultIndex)
	v.SetDefault("from", DefaultFirstPage)
	v.SetDefault("to", DefaultLastPage)
	v.SetDefault("stop_on_empty", false)
	v.SetDefault("quota_threshold", 0)

	v.SetDefault("file", DefaultStoreFile)

	v.SetDefault("redis_url", "")
	v.SetDefault("cursor_ttl", "0s")
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("no_cache", false)

	v.SetDefault("log_level", string(logging.LevelInfo))
	v.SetDefault("log_pretty", false)

	v.SetDefault("metrics_addr", "")

	v.SetDefault("top", DefaultStatsTop)

	return v
}

// BindFlags binds every flag in fs to the viper key of the same name with
// dashes turned into underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// FromViper reads the config out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Keys: Keys{
			File: v.GetString("keys_file"),
		},
		API: API{
			EndpointTemplate: v.GetString("endpoint"),
			UserAgent:        v.GetString("user_agent"),
			Timeout:          v.GetDuration("timeout"),
		},
		Harvest: Harvest{
			Query:          v.GetString("query"),
			Index:          v.GetString("index"),
			FirstPage:      v.GetInt("from"),
			LastPage:       v.GetInt("to"),
			StopOnEmpty:    v.GetBool("stop_on_empty"),
			QuotaThreshold: v.GetInt("quota_threshold"),
		},
		Store: Store{
			File: v.GetString("file"),
		},
		Redis: Redis{
			URL:       v.GetString("redis_url"),
			CursorTTL: v.GetDuration("cursor_ttl"),
			CacheTTL:  v.GetDuration("cache_ttl"),
			NoCache:   v.GetBool("no_cache"),
		},
		Log: Log{
			Level:  v.GetString("log_level"),
			Pretty: v.GetBool("log_pretty"),
		},
		Metrics: Metrics{
			Addr: v.GetString("metrics_addr"),
		},
		Stats: Stats{
			Top: v.GetInt("top"),
		},
	}
}

// NewConfig reads the config from the environment and defaults only.
func NewConfig() *Config {
	return FromViper(NewViper())
}

// KeyFile returns the key file path, falling back to ~/.isbndb.yml.
func (c *Config) KeyFile() (string, error) {
	if c.Keys.File != "" {
		return c.Keys.File, nil
	}
	return keys.DefaultPath()
}

// LoggingConfig maps the log section onto logging.Config.
func (c *Config) LoggingConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.Config{}, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg, nil
}

// ClientConfig maps the API section onto client.Config.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.EndpointTemplate = c.API.EndpointTemplate
	cfg.UserAgent = c.API.UserAgent
	cfg.Timeout = c.API.Timeout
	return cfg
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error
	if !strings.Contains(c.API.EndpointTemplate, client.KeyPlaceholder) {
		errs = append(errs, fmt.Errorf("endpoint must contain %s", client.KeyPlaceholder))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive (got %s)", c.API.Timeout))
	}
	if strings.TrimSpace(c.Harvest.Query) == "" {
		errs = append(errs, errors.New("query is required"))
	}
	if c.Harvest.FirstPage < 1 {
		errs = append(errs, fmt.Errorf("from must be >= 1 (got %d)", c.Harvest.FirstPage))
	}
	if c.Harvest.LastPage < c.Harvest.FirstPage {
		errs = append(errs, fmt.Errorf("to must be >= from (got %d..%d)", c.Harvest.FirstPage, c.Harvest.LastPage))
	}
	if c.Store.File == "" {
		errs = append(errs, errors.New("file is required"))
	}
	if c.Redis.CursorTTL < 0 {
		errs = append(errs, fmt.Errorf("cursor-ttl must not be negative (got %s)", c.Redis.CursorTTL))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
