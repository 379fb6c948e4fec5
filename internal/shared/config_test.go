package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if len(config.Catalog.Servers) != 14 {
			t.Errorf("expected 14 default servers, got %d", len(config.Catalog.Servers))
		}

		if config.Catalog.Quality != "LOSSLESS" {
			t.Errorf("expected quality LOSSLESS, got %s", config.Catalog.Quality)
		}

		if config.Catalog.RequestTimeoutDuration() != 30*time.Second {
			t.Errorf("expected request timeout 30s, got %v", config.Catalog.RequestTimeoutDuration())
		}

		if config.Catalog.RateLimitWaitDuration() != 5*time.Second {
			t.Errorf("expected rate limit wait 5s, got %v", config.Catalog.RateLimitWaitDuration())
		}

		if config.Download.RetryMaxCount != 3 {
			t.Errorf("expected retry_max_count 3, got %d", config.Download.RetryMaxCount)
		}

		if config.Download.TrackInterval() != 500*time.Millisecond {
			t.Errorf("expected track interval 500ms, got %v", config.Download.TrackInterval())
		}

		if config.Catalog.Headers["Origin"] != "https://tidal.squid.wtf" {
			t.Errorf("expected Origin header, got %q", config.Catalog.Headers["Origin"])
		}

		if config.LedgerPath() != filepath.Join("data", "error_cache.json") {
			t.Errorf("unexpected ledger path %s", config.LedgerPath())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.File != defaultConfig.Database.File {
			t.Errorf("created config database file doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `data_dir = "/var/lib/flacsync"

[catalog]
servers = ["https://one.example", "https://two.example"]

[database]
file = "custom.db"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if len(config.Catalog.Servers) != 2 {
			t.Errorf("expected 2 servers, got %d", len(config.Catalog.Servers))
		}

		if config.DatabasePath() != "/var/lib/flacsync/custom.db" {
			t.Errorf("expected database path /var/lib/flacsync/custom.db, got %s", config.DatabasePath())
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Download.Timeout != 120 {
			t.Errorf("missing keys should keep defaults, got download timeout %d", config.Download.Timeout)
		}
	})

	t.Run("LoadConfig with invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[catalog\nservers = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"SPOTIFY_CLIENT_ID":    "env_id",
			"SPOTIFY_PLAYLIST_URL": "https://open.spotify.com/playlist/abc",
			"DOWNLOAD_FOLDER":      "/music",
			"RETRY_MAX_COUNT":      "5",
			"DOWNLOAD_TIMEOUT":     "not-a-number",
			"LOG_LEVEL":            "debug",
		}

		config := DefaultConfig()
		config.ApplyEnv(func(key string) string { return env[key] })

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Playlist.URL != env["SPOTIFY_PLAYLIST_URL"] {
			t.Errorf("expected playlist url from env, got %s", config.Playlist.URL)
		}
		if config.DownloadFolder() != "/music" {
			t.Errorf("expected download folder /music, got %s", config.DownloadFolder())
		}
		if config.Download.RetryMaxCount != 5 {
			t.Errorf("expected retry count 5, got %d", config.Download.RetryMaxCount)
		}
		if config.Download.Timeout != 120 {
			t.Errorf("invalid integer should be ignored, got %d", config.Download.Timeout)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Logging.Level)
		}
	})

	t.Run("DownloadFolder defaults to music dir", func(t *testing.T) {
		config := DefaultConfig()
		if !strings.HasSuffix(config.DownloadFolder(), "flacsync") {
			t.Errorf("expected default folder under music dir, got %s", config.DownloadFolder())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "empty pool", mutate: func(c *Config) { c.Catalog.Servers = nil }},
			{name: "bad scheme", mutate: func(c *Config) { c.Catalog.Servers = []string{"ftp://example.com"} }},
			{name: "missing host", mutate: func(c *Config) { c.Catalog.Servers = []string{"https://"} }},
			{name: "zero retries", mutate: func(c *Config) { c.Download.RetryMaxCount = 0 }},
			{name: "zero timeout", mutate: func(c *Config) { c.Download.Timeout = 0 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}

		t.Run("empty pool wraps ErrEmptyPool", func(t *testing.T) {
			config := DefaultConfig()
			config.Catalog.Servers = []string{}
			if err := config.Validate(); !errors.Is(err, ErrEmptyPool) {
				t.Errorf("expected ErrEmptyPool, got %v", err)
			}
		})
	})
}
