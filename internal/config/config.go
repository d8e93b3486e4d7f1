// Package config loads formloft configuration from an optional YAML file with
// FORMLOFT_-prefixed environment variables layered on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Limits  LimitsConfig  `koanf:"limits"`
	Storage StorageConfig `koanf:"storage"`
	Spam    SpamConfig    `koanf:"spam"`
	Mail    MailConfig    `koanf:"mail"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"`
}

type LimitsConfig struct {
	MaxBytes    int64    `koanf:"max_bytes"`
	MaxFields   int      `koanf:"max_fields"`
	MaxFieldLen int      `koanf:"max_field_len"`
	MaxNameLen  int      `koanf:"max_name_len"`
	Honeypots   []string `koanf:"honeypots"`
	Rate        float64  `koanf:"rate"`
	Burst       int      `koanf:"burst"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type SpamConfig struct {
	Model   string `koanf:"model"`
	Timeout string `koanf:"timeout"`
	BaseURL string `koanf:"base_url"`
}

type MailConfig struct {
	Provider string        `koanf:"provider"` // mailgun, smtp
	From     string        `koanf:"from"`
	Mailgun  MailgunConfig `koanf:"mailgun"`
	SMTP     SMTPConfig    `koanf:"smtp"`
}

type MailgunConfig struct {
	Domain string `koanf:"domain"`
	APIKey string `koanf:"api_key"`
}

type SMTPConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Load reads the config file at path (skipped when missing) and then the
// environment. Env keys use a double underscore between nesting levels so
// single underscores survive inside key names: FORMLOFT_SERVER__PORT=9090 maps
// to server.port, FORMLOFT_LIMITS__MAX_BYTES=1000 to limits.max_bytes.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("FORMLOFT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FORMLOFT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Default values
	defaults := map[string]interface{}{
		"server.port":            8080,
		"server.request_timeout": "30s",
		"limits.max_bytes":       500_000,
		"limits.max_fields":      100,
		"limits.max_field_len":   3000,
		"limits.max_name_len":    200,
		"limits.rate":            5.0,
		"limits.burst":           10,
		"storage.sqlite.path":    "./data/formloft.db",
		"spam.model":             "gpt-4o-mini",
		"spam.timeout":           "10s",
		"mail.provider":          "mailgun",
		"mail.from":              "submissions@formloft.dev",
		"mail.smtp.port":         25,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("failed to set default %s: %w", key, err)
			}
		}
	}
	if !k.Exists("limits.honeypots") {
		if err := k.Set("limits.honeypots", []string{"are_you_human"}); err != nil {
			return nil, fmt.Errorf("failed to set default limits.honeypots: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// RequestTimeout parses the server request timeout, falling back to 30s.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Server.RequestTimeout, 30*time.Second)
}

// SpamTimeout parses the spam-check deadline, falling back to 10s.
func (c *Config) SpamTimeout() time.Duration {
	return parseDuration(c.Spam.Timeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
