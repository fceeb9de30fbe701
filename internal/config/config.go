// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then REWIND_-prefixed environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Spotify   SpotifyConfig   `koanf:"spotify"`
	Billboard BillboardConfig `koanf:"billboard"`
	Database  DatabaseConfig  `koanf:"database"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Worker    WorkerConfig    `koanf:"worker"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SpotifyConfig holds catalog service credentials and endpoints. AuthURL,
// TokenURL and BaseURL default to the public service and exist so tests
// can point the client at local fakes.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`
	BaseURL      string `koanf:"base_url"`
}

// BillboardConfig tunes the chart scraper and its cache.
type BillboardConfig struct {
	BaseURL  string        `koanf:"base_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// DatabaseConfig locates the sqlite file.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// AnalysisConfig tunes the clustering pipeline.
type AnalysisConfig struct {
	ClusterCount int `koanf:"cluster_count"`
	TrackLimit   int `koanf:"track_limit"`
}

// RateLimitConfig tunes the generation gate and the transport-level cap.
type RateLimitConfig struct {
	Cooldown          time.Duration `koanf:"cooldown"`
	MaxPerDay         int           `koanf:"max_per_day"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// WorkerConfig sizes the feature backfill pool.
type WorkerConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/api/v1/auth/callback",
			BaseURL:     "https://api.spotify.com/v1",
		},
		Billboard: BillboardConfig{
			BaseURL:  "https://www.billboard.com/charts/hot-100",
			CacheTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: "rewind.db",
		},
		Analysis: AnalysisConfig{
			ClusterCount: 10,
			TrackLimit:   0,
		},
		RateLimit: RateLimitConfig{
			Cooldown:          4 * time.Hour,
			MaxPerDay:         4,
			RequestsPerMinute: 120,
		},
		Worker: WorkerConfig{
			Workers:   2,
			QueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database path is required")
	}
	if c.Analysis.ClusterCount < 1 || c.Analysis.ClusterCount > 50 {
		return fmt.Errorf("config: cluster count %d out of range [1,50]", c.Analysis.ClusterCount)
	}
	if c.RateLimit.Cooldown <= 0 {
		return fmt.Errorf("config: rate limit cooldown must be positive")
	}
	if c.RateLimit.MaxPerDay < 1 {
		return fmt.Errorf("config: rate limit max per day must be at least 1")
	}
	if c.Worker.Workers < 1 {
		return fmt.Errorf("config: worker count must be at least 1")
	}
	return nil
}
