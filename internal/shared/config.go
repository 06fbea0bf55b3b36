package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log           LogConfig           `toml:"log"`
	Downloads     DownloadsConfig     `toml:"downloads"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Metadata      MetadataConfig      `toml:"metadata"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Credentials   CredentialsConfig   `toml:"credentials"`
	Database      DatabaseConfig      `toml:"database"`
	Server        ServerConfig        `toml:"server"`
}

// LogConfig controls logger verbosity.
type LogConfig struct {
	Level string `toml:"level"`
}

// DownloadsConfig controls where and how output files are named.
type DownloadsConfig struct {
	Dir                string `toml:"dir"`
	Extension          string `toml:"extension"`
	TrackNumberPadding int    `toml:"track_number_padding"`
}

// PipelineConfig controls playlist fan-out and re-run behavior.
type PipelineConfig struct {
	Concurrency  int  `toml:"concurrency"`
	SkipExisting bool `toml:"skip_existing"`
	Overwrite    bool `toml:"overwrite"`
}

// MetadataConfig selects the metadata extraction backend.
type MetadataConfig struct {
	Provider string `toml:"provider"` // script, spotify-api
}

// CollaboratorsConfig locates the external scripts and the interpreter that runs them.
type CollaboratorsConfig struct {
	PythonPath     string  `toml:"python_path"`
	MetadataScript string  `toml:"metadata_script"`
	PlaylistScript string  `toml:"playlist_script"`
	SearchScript   string  `toml:"search_script"`
	DownloadScript string  `toml:"download_script"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	SpawnRate      float64 `toml:"spawn_rate"` // process spawns per second
}

// Timeout returns the per-invocation timeout, zero meaning none.
func (c CollaboratorsConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
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
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
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

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var getenv = os.Getenv

// ApplyEnv overrides config values from the process environment.
//
// Recognized: PYTHON_PATH, DOWNLOADS_DIR, LOG_LEVEL, SONGRIP_CONCURRENCY,
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET.
func (c *Config) ApplyEnv() {
	if v := getenv("PYTHON_PATH"); v != "" {
		c.Collaborators.PythonPath = v
	}
	if v := getenv("DOWNLOADS_DIR"); v != "" {
		c.Downloads.Dir = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("SONGRIP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Concurrency = n
		}
	}
	if v := getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
}

// Validate checks values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Downloads.Dir == "" {
		return fmt.Errorf("%w: downloads.dir is empty", ErrInvalidConfig)
	}
	switch c.Metadata.Provider {
	case "", "script":
	case "spotify-api":
		if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
			return fmt.Errorf("%w: spotify-api provider needs client_id and client_secret", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown metadata provider %q", ErrInvalidConfig, c.Metadata.Provider)
	}
	if c.Pipeline.Concurrency < 0 {
		return fmt.Errorf("%w: pipeline.concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}
