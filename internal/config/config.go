// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Site      SiteConfig      `mapstructure:"site"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig holds the shared secret for the scheduler trigger endpoint.
type AuthConfig struct {
	CronKey string `mapstructure:"cron_key"`
}

// SiteConfig identifies the public site; used to build callback and
// checkout redirect URLs.
type SiteConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// CrawlConfig configures the external enrichment service client.
type CrawlConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Key            string `mapstructure:"key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PaymentsConfig configures the hosted-checkout provider.
type PaymentsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PriceID       string `mapstructure:"price_id"`
	APIBase       string `mapstructure:"api_base"`
}

// SchedulerConfig controls the optional in-process cron trigger.
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig controls crawl-result audit archiving.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// TaxonomyConfig seeds the category list for the memory backend. The
// Postgres backend reads navigation_category instead.
type TaxonomyConfig struct {
	Categories []string `mapstructure:"categories"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NAVHUB")
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
	v.SetDefault("site.url", "http://localhost:8080")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("crawl.timeout_seconds", 30)
	v.SetDefault("payments.api_base", "https://api.stripe.com")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "@every 5m")
	v.SetDefault("archive.prefix", "crawl-results")
	v.SetDefault("taxonomy.categories", []string{})
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.CronKey == "" {
		return fmt.Errorf("auth.cron_key is required")
	}
	if c.Crawl.Endpoint == "" {
		return fmt.Errorf("crawl.endpoint is required")
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Storage.Backend != BackendPostgres && c.Storage.Backend != BackendMemory {
		return fmt.Errorf("storage.backend must be %q or %q", BackendPostgres, BackendMemory)
	}
	if c.Storage.Backend == BackendPostgres && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required for the postgres backend")
	}
	if c.Payments.Enabled {
		if c.Payments.SecretKey == "" {
			return fmt.Errorf("payments.secret_key is required when payments are enabled")
		}
		if c.Payments.WebhookSecret == "" {
			return fmt.Errorf("payments.webhook_secret is required when payments are enabled")
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
	}
	if c.Archive.Enabled && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required when archiving is enabled")
	}
	return nil
}

// CrawlTimeout converts the crawl timeout setting into a duration.
func (c Config) CrawlTimeout() time.Duration {
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}

// CallbackURL is handed to the crawl service for asynchronous notification.
func (c Config) CallbackURL() string {
	return strings.TrimRight(c.Site.URL, "/") + "/api/cron_callback"
}

// CrawlKey falls back to the cron key when no dedicated crawl key is set,
// matching how the scheduler secret doubles as the crawl service credential.
func (c Config) CrawlKey() string {
	if c.Crawl.Key != "" {
		return c.Crawl.Key
	}
	return c.Auth.CronKey
}
