// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	RequestTimeoutSec int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures outbound fetch behavior and retries.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	MaxBodyBytes     int    `mapstructure:"max_body_bytes"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
}

// ScraperConfig governs the per-site pipeline and the bulk pool.
type ScraperConfig struct {
	Concurrency     int      `mapstructure:"concurrency"`
	RetryFailed     bool     `mapstructure:"retry_failed"`
	MaxBulkURLs     int      `mapstructure:"max_bulk_urls"`
	ContactKeywords []string `mapstructure:"contact_keywords"`
}

// ExtractorConfig tunes email and phone extraction.
type ExtractorConfig struct {
	JunkEmailDomains []string `mapstructure:"junk_email_domains"`
	PhoneRegion      string   `mapstructure:"phone_region"`
	PhoneMinDigits   int      `mapstructure:"phone_min_digits"`
	PhonePattern     string   `mapstructure:"phone_pattern"`
}

// HeadlessConfig configures the browser-based fetch strategy.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
}

// DetectorConfig tunes the JS-application heuristic that promotes a
// page from the plain fetcher to the browser.
type DetectorConfig struct {
	MinHTMLBytes int      `mapstructure:"min_html_bytes"`
	SelectorMust string   `mapstructure:"selector_must"`
	Keywords     []string `mapstructure:"keywords"`
}

// StorageConfig selects and parameterizes the report artifact store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// JobsConfig selects the bulk-job record store.
type JobsConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// PublisherConfig selects the report completion event publisher.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONTACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)

	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.user_agent", "contact-crawler/1.0 (+https://github.com/leadfinch/contact-crawler)")
	v.SetDefault("http.max_body_bytes", 5*1024*1024)
	v.SetDefault("http.respect_robots", true)

	v.SetDefault("scraper.concurrency", 16)
	v.SetDefault("scraper.retry_failed", true)
	v.SetDefault("scraper.max_bulk_urls", 500)
	v.SetDefault("scraper.contact_keywords", []string{
		"contact",
		"contact-us",
		"get-in-touch",
		"support",
	})

	v.SetDefault("extractor.junk_email_domains", []string{
		"sentry.wixpress.com",
		"sentry.io",
		"wixpress.com",
	})
	v.SetDefault("extractor.phone_region", "IN")
	v.SetDefault("extractor.phone_min_digits", 10)
	v.SetDefault("extractor.phone_pattern", "")

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.domain_qps", 0.5)

	v.SetDefault("detector.min_html_bytes", 2000)
	v.SetDefault("detector.selector_must", ".main,.app,.content")
	v.SetDefault("detector.keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data/reports")
	v.SetDefault("storage.prefix", "reports")

	v.SetDefault("jobs.provider", "memory")
	v.SetDefault("jobs.table", "contact_jobs")

	v.SetDefault("publisher.provider", "noop")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Scraper.Concurrency <= 0 || c.Scraper.Concurrency > 64 {
		return fmt.Errorf("scraper.concurrency must be in 1..64")
	}
	if c.Scraper.MaxBulkURLs <= 0 {
		return fmt.Errorf("scraper.max_bulk_urls must be > 0")
	}
	if len(c.Scraper.ContactKeywords) == 0 {
		return fmt.Errorf("scraper.contact_keywords must not be empty")
	}
	if strings.TrimSpace(c.Extractor.PhoneRegion) == "" {
		return fmt.Errorf("extractor.phone_region must be set")
	}
	if c.Extractor.PhoneMinDigits <= 0 || c.Extractor.PhoneMinDigits > 15 {
		return fmt.Errorf("extractor.phone_min_digits must be in 1..15")
	}
	if c.Extractor.PhonePattern != "" {
		if _, err := regexp.Compile(c.Extractor.PhonePattern); err != nil {
			return fmt.Errorf("extractor.phone_pattern: %w", err)
		}
	}
	if c.Headless.Enabled {
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
		}
		if c.Headless.NavTimeoutSec <= 0 {
			return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when headless is enabled")
		}
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.provider: %s", c.Storage.Provider)
	}
	switch c.Jobs.Provider {
	case "memory":
	case "postgres":
		if c.Jobs.DSN == "" {
			return fmt.Errorf("jobs.dsn must be set when jobs.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown jobs.provider: %s", c.Jobs.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher.provider: %s", c.Publisher.Provider)
	}
	return nil
}

// Timeout returns the per-request fetch timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry interval.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry interval ceiling.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// NavTimeout returns the browser navigation deadline.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// RequestTimeout returns the handler deadline for lightweight routes.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
