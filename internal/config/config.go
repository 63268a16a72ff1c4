// Package config loads the gateway's configuration from a YAML file with
// environment variable overrides, following the pattern the surveyed
// services use (see services/topics/cmd/topics/main.go in the teacher repo).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the gateway process.
type Config struct {
	Server struct {
		Addr            string `yaml:"addr"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	} `yaml:"server"`

	Protocol struct {
		Tag string `yaml:"tag"`
	} `yaml:"protocol"`

	Auth struct {
		HMACSecret      string        `yaml:"hmac_secret"`
		TokenExpiry     time.Duration `yaml:"token_expiry"`
		Insecure        bool          `yaml:"insecure"`
		DefaultCapabilities []string  `yaml:"default_capabilities"`
	} `yaml:"auth"`

	Limits struct {
		HistoryCap        int           `yaml:"history_cap"`
		MessagesPerMinute int           `yaml:"messages_per_minute"`
		ChatPerMinute     int           `yaml:"chat_per_minute"`
		MaxEnvelopeBytes  int           `yaml:"max_envelope_bytes"`
		GrantsPerParticipant int        `yaml:"grants_per_participant"`
		ProposalExpiry    time.Duration `yaml:"proposal_expiry"`
		StreamInactivity  time.Duration `yaml:"stream_inactivity"`
	} `yaml:"limits"`

	Logs struct {
		Dir        string `yaml:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"logs"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Default returns a Config with the spec's recommended defaults.
func Default() Config {
	var c Config
	c.Server.Addr = ":8080"
	c.Server.HandshakeTimeout = 15 * time.Second
	c.Protocol.Tag = "mew/v0.4"
	c.Auth.TokenExpiry = time.Hour
	c.Auth.Insecure = false
	c.Auth.DefaultCapabilities = []string{"chat", "mcp/response"}
	c.Limits.HistoryCap = 1000
	c.Limits.MessagesPerMinute = 120
	c.Limits.ChatPerMinute = 60
	c.Limits.MaxEnvelopeBytes = 1 << 20 // 1MB; spec notes 10MB is inconsistent across sources, pick an explicit conservative cap
	c.Limits.GrantsPerParticipant = 256
	c.Limits.ProposalExpiry = 5 * time.Minute
	c.Limits.StreamInactivity = 0 // disabled by default per spec §5
	c.Logs.Dir = ".mew/logs"
	c.Logs.MaxSizeMB = 50
	c.Logs.MaxBackups = 5
	c.CORS.AllowedOrigins = []string{"*"}
	return c
}

// Load reads a YAML config file (if path is non-empty and exists) over the
// defaults, then applies environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv("MEW_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("MEW_PROTOCOL")); v != "" {
		c.Protocol.Tag = v
	}
	if v := strings.TrimSpace(os.Getenv("MEW_HMAC_SECRET")); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("MEW_AUTH_INSECURE")); v != "" {
		c.Auth.Insecure = strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("MEW_HISTORY_CAP")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.HistoryCap = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEW_MESSAGES_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.MessagesPerMinute = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEW_LOG_DIR")); v != "" {
		c.Logs.Dir = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Protocol.Tag) == "" {
		return fmt.Errorf("config: protocol.tag is required")
	}
	if !c.Auth.Insecure && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: auth.hmac_secret is required unless auth.insecure is set")
	}
	if c.Limits.HistoryCap <= 0 {
		return fmt.Errorf("config: limits.history_cap must be positive")
	}
	if c.Limits.MaxEnvelopeBytes <= 0 {
		return fmt.Errorf("config: limits.max_envelope_bytes must be positive")
	}
	return nil
}
