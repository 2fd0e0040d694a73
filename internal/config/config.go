package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Site       SiteConfig       `yaml:"site" mapstructure:"site"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Harvest    HarvestConfig    `yaml:"harvest" mapstructure:"harvest"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SiteConfig identifies the fixed directory site being harvested.
type SiteConfig struct {
	RootURL    string `yaml:"root_url" mapstructure:"root_url" validate:"required,url"`
	SitemapURL string `yaml:"sitemap_url" mapstructure:"sitemap_url" validate:"omitempty,url"`
}

// StoreConfig configures the checkpoint store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DiscoveryConfig tunes the scroll-until-stable identifier discovery loop.
type DiscoveryConfig struct {
	StallLimit      int      `yaml:"stall_limit" mapstructure:"stall_limit" validate:"min=1"`
	MaxIterations   int      `yaml:"max_iterations" mapstructure:"max_iterations" validate:"min=1"`
	StableTimeoutMS int      `yaml:"stable_timeout_ms" mapstructure:"stable_timeout_ms" validate:"min=100"`
	PollIntervalMS  int      `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms" validate:"min=50"`
	InitialWaitMS   int      `yaml:"initial_wait_ms" mapstructure:"initial_wait_ms" validate:"min=0"`
	CategoryPaths   []string `yaml:"category_paths" mapstructure:"category_paths"`
	AutoCategories  bool     `yaml:"auto_categories" mapstructure:"auto_categories"`
}

// HarvestConfig tunes the checkpointed harvest loop.
type HarvestConfig struct {
	Loader              string `yaml:"loader" mapstructure:"loader" validate:"oneof=http browser"`
	DelayMS             int    `yaml:"delay_ms" mapstructure:"delay_ms" validate:"min=0"`
	GraceSecs           int    `yaml:"grace_secs" mapstructure:"grace_secs" validate:"min=1"`
	NavRetries          int    `yaml:"nav_retries" mapstructure:"nav_retries" validate:"min=1"`
	Workers             int    `yaml:"workers" mapstructure:"workers" validate:"min=1"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold" validate:"min=1"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs" validate:"min=1"`
}

// BrowserConfig configures the headless rendering session.
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs" validate:"min=1"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// FetchConfig configures the plain-HTTP page loader.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gt=0"`
	Burst       int     `yaml:"burst" mapstructure:"burst" validate:"min=1"`
}

// ExtractConfig configures field extraction.
type ExtractConfig struct {
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// VerifyConfig configures optional post-extraction validation.
type VerifyConfig struct {
	EmailMX    bool     `yaml:"email_mx" mapstructure:"email_mx"`
	DNSServers []string `yaml:"dns_servers" mapstructure:"dns_servers"`
}

// ExportConfig configures the workbook sink.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the monitor HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
}

// MonitoringConfig tunes the in-run progress watcher and its alerts.
type MonitoringConfig struct {
	IntervalSecs         int     `yaml:"interval_secs" mapstructure:"interval_secs" validate:"min=1"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// Best-effort .env preload so HARVEST_* vars can live beside the binary.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("site.root_url", "https://thevoiceofblackcincinnati.com/black-owned-businesses/")
	v.SetDefault("site.sitemap_url", "https://thevoiceofblackcincinnati.com/businesses-sitemap.xml")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "harvest.db")
	v.SetDefault("discovery.stall_limit", 3)
	v.SetDefault("discovery.max_iterations", 150)
	v.SetDefault("discovery.stable_timeout_ms", 6000)
	v.SetDefault("discovery.poll_interval_ms", 400)
	v.SetDefault("discovery.initial_wait_ms", 3000)
	v.SetDefault("discovery.auto_categories", false)
	v.SetDefault("harvest.loader", "http")
	v.SetDefault("harvest.delay_ms", 800)
	v.SetDefault("harvest.grace_secs", 10)
	v.SetDefault("harvest.nav_retries", 3)
	v.SetDefault("harvest.workers", 1)
	v.SetDefault("harvest.breaker_threshold", 5)
	v.SetDefault("harvest.breaker_cooldown_secs", 60)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 45)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("verify.email_mx", false)
	v.SetDefault("verify.dns_servers", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("export.path", "businesses.xlsx")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.interval_secs", 30)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
