package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/isbndb-books/pkg/client"
	"github.com/Sternrassler/isbndb-books/pkg/logging"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "", cfg.Keys.File)
	assert.Equal(t, client.DefaultEndpointTemplate, cfg.API.EndpointTemplate)
	assert.Equal(t, DefaultUserAgent, cfg.API.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "Manning", cfg.Harvest.Query)
	assert.Equal(t, "publisher_name", cfg.Harvest.Index)
	assert.Equal(t, 1, cfg.Harvest.FirstPage)
	assert.Equal(t, 20, cfg.Harvest.LastPage)
	assert.False(t, cfg.Harvest.StopOnEmpty)
	assert.Equal(t, "books.json", cfg.Store.File)
	assert.Equal(t, "", cfg.Redis.URL)
	assert.Equal(t, time.Duration(0), cfg.Redis.CursorTTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "", cfg.Metrics.Addr)
	assert.Equal(t, DefaultStatsTop, cfg.Stats.Top)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_Env(t *testing.T) {
	t.Setenv("ISBNDB_QUERY", "O'Reilly")
	t.Setenv("ISBNDB_TO", "5")
	t.Setenv("ISBNDB_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("ISBNDB_CURSOR_TTL", "24h")
	t.Setenv("ISBNDB_STOP_ON_EMPTY", "true")

	cfg := NewConfig()

	assert.Equal(t, "O'Reilly", cfg.Harvest.Query)
	assert.Equal(t, 5, cfg.Harvest.LastPage)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CursorTTL)
	assert.True(t, cfg.Harvest.StopOnEmpty)
}

func TestBindFlags(t *testing.T) {
	t.Setenv("ISBNDB_QUERY", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("query", DefaultQuery, "")
	fs.Int("from", DefaultFirstPage, "")
	fs.String("log-level", "info", "")
	fs.Duration("cache-ttl", 24*time.Hour, "")
	require.NoError(t, fs.Parse([]string{"--query", "from-flag", "--log-level", "debug", "--cache-ttl", "1h"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, fs))
	cfg := FromViper(v)

	assert.Equal(t, "from-flag", cfg.Harvest.Query, "a set flag beats the environment")
	assert.Equal(t, 1, cfg.Harvest.FirstPage)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
}

func TestBindFlags_UnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("ISBNDB_FILE", "env.json")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("file", DefaultStoreFile, "")
	require.NoError(t, fs.Parse(nil))

	v := NewViper()
	require.NoError(t, BindFlags(v, fs))

	assert.Equal(t, "env.json", FromViper(v).Store.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no placeholder", mutate: func(c *Config) { c.API.EndpointTemplate = "http://x/books" }, wantErr: "endpoint must contain {key}"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "timeout must be positive (got 0s)"},
		{name: "blank query", mutate: func(c *Config) { c.Harvest.Query = " " }, wantErr: "query is required"},
		{name: "page zero", mutate: func(c *Config) { c.Harvest.FirstPage = 0 }, wantErr: "from must be >= 1 (got 0)"},
		{name: "inverted range", mutate: func(c *Config) { c.Harvest.FirstPage = 4; c.Harvest.LastPage = 2 }, wantErr: "to must be >= from (got 4..2)"},
		{name: "no file", mutate: func(c *Config) { c.Store.File = "" }, wantErr: "file is required"},
		{name: "negative ttl", mutate: func(c *Config) { c.Redis.CursorTTL = -time.Second }, wantErr: "cursor-ttl must not be negative (got -1s)"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKeyFile(t *testing.T) {
	cfg := NewConfig()
	cfg.Keys.File = "/tmp/keys.yml"
	path, err := cfg.KeyFile()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/keys.yml", path)

	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg.Keys.File = ""
	path, err = cfg.KeyFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".isbndb.yml"), path)
}

func TestLoggingConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.Log.Level = "warning"
	cfg.Log.Pretty = true

	lc, err := cfg.LoggingConfig()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.True(t, lc.Pretty)

	cfg.Log.Level = "verbose"
	_, err = cfg.LoggingConfig()
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.API.EndpointTemplate = "http://127.0.0.1:9/api/v2/json/{key}/books"
	cfg.API.Timeout = 5 * time.Second

	cc := cfg.ClientConfig()
	assert.Equal(t, cfg.API.EndpointTemplate, cc.EndpointTemplate)
	assert.Equal(t, DefaultUserAgent, cc.UserAgent)
	assert.Equal(t, 5*time.Second, cc.Timeout)
	assert.Nil(t, cc.Cache)
}

func TestLoadEnvFiles(t *testing.T) {
	const name = "ISBNDB_TOP"
	require.NoError(t, os.Unsetenv(name))
	t.Cleanup(func() { os.Unsetenv(name) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(name+"=3\n"), 0o644))

	LoadEnvFiles(path, filepath.Join(dir, "missing.env"))

	assert.Equal(t, 3, NewConfig().Stats.Top)
}

func TestLoadEnvFiles_EnvironmentWins(t *testing.T) {
	t.Setenv("ISBNDB_INDEX", "combined")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ISBNDB_INDEX=title\n"), 0o644))

	LoadEnvFiles(path)

	assert.Equal(t, "combined", NewConfig().Harvest.Index)
}
