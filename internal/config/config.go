// Package config loads the bot configuration from a YAML or JSON file.
// YAML is coerced to JSON so both formats share one strict decoder
// (DisallowUnknownFields): removed or misspelled keys fail the load instead
// of being silently ignored.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const DefaultTimezone = "Asia/Singapore"

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Course   CourseConfig   `json:"course"`

	// Timezone is the IANA zone every timestamp is parsed and displayed in.
	Timezone string `json:"timezone,omitempty"`

	// DryRun suppresses actual delivery while keeping the full fan-out path.
	DryRun bool `json:"dry_run,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders,omitempty"`
	Digest    DigestConfig    `json:"digest,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
}

type TelegramConfig struct {
	// Token supports ${ENV} expansion so secrets can stay in the environment
	// (or a .env file) instead of the config file.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type CourseConfig struct {
	Path  string       `json:"path,omitempty"`
	MinIO *MinIOConfig `json:"minio,omitempty"`
}

type MinIOConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
	Bucket    string `json:"bucket"`
	Object    string `json:"object"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type RemindersConfig struct {
	Workers int `json:"workers,omitempty"`
	// SendTimeout bounds each per-recipient delivery attempt.
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// DigestConfig controls the optional daily schedule digest broadcast.
type DigestConfig struct {
	Enabled bool   `json:"enabled"`
	At      string `json:"at,omitempty"` // HH:MM in the bot timezone
}

type StorageConfig struct {
	Driver string `json:"driver,omitempty"` // sqlite (default), file, postgres
	Path   string `json:"path,omitempty"`
	DSN    string `json:"dsn,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// HTTPConfig controls the optional read-only status API.
type HTTPConfig struct {
	Enabled        bool     `json:"enabled"`
	Addr           string   `json:"addr,omitempty"` // default "127.0.0.1:8880"
	CacheTTL       string   `json:"cache_ttl,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// Load reads, decodes and defaults the config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(path, b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	c.Telegram.Token = os.ExpandEnv(c.Telegram.Token)
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8880"
	}
	if c.Digest.Enabled && c.Digest.At == "" {
		c.Digest.At = "08:00"
	}
}
