package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	DataDir     string            `toml:"data_dir"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Download    DownloadConfig    `toml:"download"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Logging     LoggingConfig     `toml:"logging"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

// CatalogConfig describes the pool of equivalent catalog servers and how requests to them are paced.
type CatalogConfig struct {
	Servers              []string          `toml:"servers"`
	ImageHost            string            `toml:"image_host"`
	Quality              string            `toml:"quality"`
	RequestTimeout       int               `toml:"request_timeout"`
	RateLimitWait        int               `toml:"rate_limit_wait"`
	RetryWait            int               `toml:"retry_wait"`
	MaxAttemptsPerServer int               `toml:"max_attempts_per_server"`
	SearchLimit          int               `toml:"search_limit"`
	Headers              map[string]string `toml:"headers"`
}

// DownloadConfig contains settings for the per-track download loop.
type DownloadConfig struct {
	Folder          string `toml:"folder"`
	Timeout         int    `toml:"timeout"`
	RetryMaxCount   int    `toml:"retry_max_count"`
	RetryWait       int    `toml:"retry_wait"`
	TrackIntervalMS int    `toml:"track_interval_ms"`
	Covers          bool   `toml:"covers"`
	Tags            bool   `toml:"tags"`
	SkipExisting    bool   `toml:"skip_existing"`
	FailedLog       string `toml:"failed_log"`
}

// PlaylistConfig points at the upstream playlist and its local cache.
type PlaylistConfig struct {
	URL         string `toml:"url"`
	CacheFile   string `toml:"cache_file"`
	CacheExpiry int    `toml:"cache_expiry"`
}

// LedgerConfig locates the persistent failure ledger.
type LedgerConfig struct {
	File string `toml:"file"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	File         string `toml:"file"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains the log level name.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig enables optional error reporting.
type TelemetryConfig struct {
	SentryDSN   string `toml:"sentry_dsn"`
	Environment string `toml:"environment"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto the config. getenv is usually [os.Getenv].
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	setString("SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	setString("SPOTIFY_PLAYLIST_URL", &c.Playlist.URL)
	setString("DOWNLOAD_FOLDER", &c.Download.Folder)
	setString("DATA_DIR", &c.DataDir)
	setString("DATABASE_FILE", &c.Database.File)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("SENTRY_DSN", &c.Telemetry.SentryDSN)
	setInt("DOWNLOAD_TIMEOUT", &c.Download.Timeout)
	setInt("RETRY_MAX_COUNT", &c.Download.RetryMaxCount)
	setInt("PLAYLIST_CACHE_EXPIRY", &c.Playlist.CacheExpiry)
}

// Validate rejects configurations the catalog client cannot run with.
func (c *Config) Validate() error {
	if len(c.Catalog.Servers) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrEmptyPool)
	}
	for _, server := range c.Catalog.Servers {
		u, err := url.Parse(server)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: invalid catalog server %q", ErrInvalidConfig, server)
		}
	}
	if c.Download.RetryMaxCount < 1 {
		return fmt.Errorf("%w: download.retry_max_count must be at least 1", ErrInvalidConfig)
	}
	if c.Download.Timeout < 1 {
		return fmt.Errorf("%w: download.timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// DownloadFolder resolves the audio destination, defaulting to the user's music directory.
func (c *Config) DownloadFolder() string {
	if c.Download.Folder != "" {
		return c.Download.Folder
	}
	return filepath.Join(xdg.UserDirs.Music, "flacsync")
}

// DataPath joins name onto the data directory unless name is already absolute.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// LedgerPath is the failure ledger file location.
func (c *Config) LedgerPath() string { return c.DataPath(c.Ledger.File) }

// DatabasePath is the SQLite file location.
func (c *Config) DatabasePath() string {
	if c.Database.File == ":memory:" {
		return c.Database.File
	}
	return c.DataPath(c.Database.File)
}

// FailedLogPath is the failed-downloads CSV location.
func (c *Config) FailedLogPath() string { return c.DataPath(c.Download.FailedLog) }

// PlaylistCachePath is the playlist JSON cache location.
func (c *Config) PlaylistCachePath() string { return c.DataPath(c.Playlist.CacheFile) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// RequestTimeoutDuration is the per-attempt catalog request timeout.
func (c CatalogConfig) RequestTimeoutDuration() time.Duration { return seconds(c.RequestTimeout) }

// RateLimitWaitDuration is the backoff after a 429.
func (c CatalogConfig) RateLimitWaitDuration() time.Duration { return seconds(c.RateLimitWait) }

// RetryWaitDuration is the backoff after a transient failure.
func (c CatalogConfig) RetryWaitDuration() time.Duration { return seconds(c.RetryWait) }

// TimeoutDuration bounds a single track transfer.
func (d DownloadConfig) TimeoutDuration() time.Duration { return seconds(d.Timeout) }

// RetryWaitDuration is the pause between whole-track retries.
func (d DownloadConfig) RetryWaitDuration() time.Duration { return seconds(d.RetryWait) }

// TrackInterval is the minimum spacing between track starts.
func (d DownloadConfig) TrackInterval() time.Duration {
	return time.Duration(d.TrackIntervalMS) * time.Millisecond
}

// CacheExpiryDuration is how long a cached playlist stays fresh.
func (p PlaylistConfig) CacheExpiryDuration() time.Duration { return seconds(p.CacheExpiry) }
