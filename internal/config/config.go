// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/index"
)

// Archive backends.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendMem   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Browser BrowserConfig `mapstructure:"browser"`
	Index   IndexConfig   `mapstructure:"index"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig tunes thread crawls.
type CrawlerConfig struct {
	Concurrency          int `mapstructure:"concurrency"`
	BudgetSeconds        int `mapstructure:"budget_seconds"`
	EmptyPageStop        int `mapstructure:"empty_page_stop"`
	MaxChainSteps        int `mapstructure:"max_chain_steps"`
	ForwardSweepPages    int `mapstructure:"forward_sweep_pages"`
	ChainFallbackCeiling int `mapstructure:"chain_fallback_ceiling"`
	MinPlausiblePosts    int `mapstructure:"min_plausible_posts"`
}

// BrowserConfig configures page fetching: the static probe, the headless
// promotion path, politeness and retries.
type BrowserConfig struct {
	UserAgent          string  `mapstructure:"user_agent"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds  int     `mapstructure:"nav_timeout_seconds"`
	HeadlessEnabled    bool    `mapstructure:"headless_enabled"`
	HeadlessVisible    bool    `mapstructure:"headless_visible"`
	MaxParallel        int     `mapstructure:"max_parallel"`
	PromotionThreshold int     `mapstructure:"promotion_threshold"`
	CookiesPath        string  `mapstructure:"cookies_path"`
	RateLimitRPS       float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
	MaxRetries         int     `mapstructure:"max_retries"`
	BackoffInitialMs   int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs       int     `mapstructure:"backoff_max_ms"`
}

// IndexConfig controls board index builds and lookups.
type IndexConfig struct {
	Path        string `mapstructure:"path"`
	LandingURL  string `mapstructure:"landing_url"`
	SiteMapURL  string `mapstructure:"site_map_url"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxSections int    `mapstructure:"max_sections"`
}

// JobsConfig sizes the background build runner.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// StorageConfig selects where built indexes are archived.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
	HashLength  int    `mapstructure:"hash_length"`
}

// PubSubConfig holds metadata for build notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NGACRAWL")
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
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.concurrency", crawler.DefaultConcurrency)
	v.SetDefault("crawler.budget_seconds", int(crawler.DefaultBudget/time.Second))
	v.SetDefault("crawler.empty_page_stop", crawler.DefaultEmptyPageStop)
	v.SetDefault("crawler.max_chain_steps", crawler.DefaultMaxChainSteps)
	v.SetDefault("crawler.forward_sweep_pages", crawler.DefaultForwardSweepPages)
	v.SetDefault("crawler.chain_fallback_ceiling", crawler.DefaultChainFallbackCeiling)
	v.SetDefault("crawler.min_plausible_posts", crawler.DefaultMinPlausiblePosts)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("browser.timeout_seconds", 30)
	v.SetDefault("browser.nav_timeout_seconds", 90)
	v.SetDefault("browser.headless_enabled", true)
	v.SetDefault("browser.headless_visible", false)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.promotion_threshold", 2048)
	v.SetDefault("browser.cookies_path", "")
	v.SetDefault("browser.rate_limit_rps", 2.0)
	v.SetDefault("browser.rate_limit_burst", 2)
	v.SetDefault("browser.max_retries", 2)
	v.SetDefault("browser.backoff_initial_ms", 250)
	v.SetDefault("browser.backoff_max_ms", 2000)
	v.SetDefault("index.path", "")
	v.SetDefault("index.landing_url", index.DefaultLandingURL)
	v.SetDefault("index.site_map_url", index.DefaultSiteMapURL)
	v.SetDefault("index.concurrency", 8)
	v.SetDefault("index.max_sections", 0)
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.queue_depth", 16)
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.prefix", "indexes")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("storage.hash_length", 16)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.BudgetSeconds < 0 {
		return fmt.Errorf("crawler.budget_seconds must be >= 0")
	}
	if c.Index.Concurrency <= 0 {
		return fmt.Errorf("index.concurrency must be > 0")
	}
	if c.Index.MaxSections < 0 {
		return fmt.Errorf("index.max_sections must be >= 0")
	}
	if c.Browser.HeadlessEnabled && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 when headless is enabled")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "", BackendNone, BackendMem:
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// CrawlerOptions converts the crawler section into orchestrator options.
func (c Config) CrawlerOptions() crawler.Options {
	return crawler.Options{
		Concurrency:          c.Crawler.Concurrency,
		Budget:               time.Duration(c.Crawler.BudgetSeconds) * time.Second,
		EmptyPageStop:        c.Crawler.EmptyPageStop,
		MaxChainSteps:        c.Crawler.MaxChainSteps,
		ForwardSweepPages:    c.Crawler.ForwardSweepPages,
		ChainFallbackCeiling: c.Crawler.ChainFallbackCeiling,
		MinPlausiblePosts:    c.Crawler.MinPlausiblePosts,
	}
}

// IndexOptions converts the index section into builder options.
func (c Config) IndexOptions() index.Options {
	return index.Options{
		Concurrency: c.Index.Concurrency,
		LandingURL:  c.Index.LandingURL,
		SiteMapURL:  c.Index.SiteMapURL,
	}
}

// RequestTimeout is the per-request ceiling of the HTTP API.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
