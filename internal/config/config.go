package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration loaded from YAML.
type Config struct {
	Server struct {
		Host      string `yaml:"host"`
		Port      string `yaml:"port"`
		Prefork   bool   `yaml:"prefork"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Session struct {
		CookieName   string        `yaml:"cookie_name"`
		CookieSecure bool          `yaml:"cookie_secure"`
		Expiration   time.Duration `yaml:"expiration"`
	} `yaml:"session"`

	Cache struct {
		RedisHost       string        `yaml:"redis_host"`
		SessionDB       int           `yaml:"redis_session_db"`
		ListingsDB      int           `yaml:"redis_listings_db"`
		ListingsEnabled bool          `yaml:"listings_enabled"`
		ListingsTTL     time.Duration `yaml:"listings_ttl"`
	} `yaml:"cache"`

	Auth struct {
		ClientID        string        `yaml:"client_id"`
		ClientSecret    string        `yaml:"client_secret"`
		OAuthServer     string        `yaml:"oauth_server"`
		Scopes          []string      `yaml:"scopes"`
		TargetAccountID string        `yaml:"target_account_id"`
		FormBuffer      time.Duration `yaml:"form_buffer"`
		SubmitBuffer    time.Duration `yaml:"submit_buffer"`
		DefaultTokenTTL time.Duration `yaml:"default_token_ttl"`
	} `yaml:"auth"`

	ESign struct {
		Timeout        time.Duration `yaml:"timeout"`
		EnvelopeStatus string        `yaml:"envelope_status"`
	} `yaml:"esign"`

	Examples struct {
		SourceURL     string `yaml:"source_url"`
		Documentation string `yaml:"documentation"`
	} `yaml:"examples"`

	Security struct {
		CSRFEnabled  bool          `yaml:"csrf_enabled"`
		RateLimit    int           `yaml:"rate_limit"`
		RateInterval time.Duration `yaml:"rate_interval"`
	} `yaml:"security"`
}

// RedirectURL is the OAuth callback registered with the identity provider.
func (c Config) RedirectURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/") + "/ds/callback"
}

// Load reads the file named by CONFIG_PATH, falling back to config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the configuration at path. It panics when the
// file is unreadable or holds invalid values.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}

	if v := os.Getenv("ESIGN_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("ESIGN_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.PublicURL == "" {
		host := cfg.Server.Host
		if host == "" {
			host = "localhost"
		}
		cfg.Server.PublicURL = "http://" + host + cfg.Server.Port
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "session_id"
	}
	if cfg.Session.Expiration == 0 {
		cfg.Session.Expiration = 24 * time.Hour
	}
	if cfg.Cache.ListingsTTL == 0 {
		cfg.Cache.ListingsTTL = 5 * time.Minute
	}
	if cfg.Auth.OAuthServer == "" {
		cfg.Auth.OAuthServer = "https://account-d.docusign.com"
	}
	if len(cfg.Auth.Scopes) == 0 {
		cfg.Auth.Scopes = []string{"signature"}
	}
	if cfg.Auth.FormBuffer == 0 {
		cfg.Auth.FormBuffer = 60 * time.Minute
	}
	if cfg.Auth.SubmitBuffer == 0 {
		cfg.Auth.SubmitBuffer = 3 * time.Minute
	}
	if cfg.Auth.DefaultTokenTTL == 0 {
		cfg.Auth.DefaultTokenTTL = 8 * time.Hour
	}
	if cfg.ESign.Timeout == 0 {
		cfg.ESign.Timeout = 30 * time.Second
	}
	if cfg.ESign.EnvelopeStatus == "" {
		cfg.ESign.EnvelopeStatus = "sent"
	}
	if cfg.Security.RateInterval == 0 {
		cfg.Security.RateInterval = time.Minute
	}
}

func validate(cfg Config) error {
	if cfg.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required")
	}
	if cfg.Auth.FormBuffer < 0 || cfg.Auth.SubmitBuffer < 0 {
		return fmt.Errorf("auth token buffers must not be negative")
	}
	if cfg.Auth.DefaultTokenTTL <= cfg.Auth.SubmitBuffer {
		return fmt.Errorf("auth.default_token_ttl must exceed auth.submit_buffer")
	}
	if cfg.ESign.Timeout < 0 {
		return fmt.Errorf("esign.timeout must not be negative")
	}
	switch cfg.ESign.EnvelopeStatus {
	case "sent", "created":
	default:
		return fmt.Errorf("esign.envelope_status must be sent or created, got %q", cfg.ESign.EnvelopeStatus)
	}
	if cfg.Cache.ListingsEnabled && cfg.Cache.RedisHost == "" {
		return fmt.Errorf("cache.listings_enabled requires cache.redis_host")
	}
	if cfg.Cache.ListingsTTL < 0 {
		return fmt.Errorf("cache.listings_ttl must not be negative")
	}
	if cfg.Security.RateLimit < 0 {
		return fmt.Errorf("security.rate_limit must not be negative")
	}
	if cfg.Security.RateInterval <= 0 {
		return fmt.Errorf("security.rate_interval must be positive")
	}
	return nil
}
