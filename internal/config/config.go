// Package config loads leadfinder settings from config.yaml and LEADFINDER_*
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full application configuration.
type Config struct {
	Google         GoogleConfig         `yaml:"google" mapstructure:"google"`
	Postcodes      PostcodesConfig      `yaml:"postcodes" mapstructure:"postcodes"`
	CompaniesHouse CompaniesHouseConfig `yaml:"companies_house" mapstructure:"companies_house"`
	Scrape         ScrapeConfig         `yaml:"scrape" mapstructure:"scrape"`
	Discovery      DiscoveryConfig      `yaml:"discovery" mapstructure:"discovery"`
	Enrich         EnrichConfig         `yaml:"enrich" mapstructure:"enrich"`
	Output         OutputConfig         `yaml:"output" mapstructure:"output"`
	Notion         NotionConfig         `yaml:"notion" mapstructure:"notion"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Region         RegionConfig         `yaml:"region" mapstructure:"region"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// GoogleConfig configures the Places API client.
type GoogleConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PostcodesConfig configures the postcodes.io client.
type PostcodesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CompaniesHouseConfig configures the registry client.
type CompaniesHouseConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ScrapeConfig configures contact extraction.
type ScrapeConfig struct {
	UserAgent       string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxDepth        int      `yaml:"max_depth" mapstructure:"max_depth"`
	MaxContactPages int      `yaml:"max_contact_pages" mapstructure:"max_contact_pages"`
	Blocklist       []string `yaml:"blocklist" mapstructure:"blocklist"`
}

// Timeout returns the per-page fetch timeout.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// DiscoveryConfig configures candidate discovery.
type DiscoveryConfig struct {
	RadiusMeters int      `yaml:"radius_meters" mapstructure:"radius_meters"`
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
	KeywordsFile string   `yaml:"keywords_file" mapstructure:"keywords_file"`
	StaggerMs    int      `yaml:"stagger_ms" mapstructure:"stagger_ms"`
	SettleMs     int      `yaml:"settle_ms" mapstructure:"settle_ms"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"`
	SnapshotPath string   `yaml:"snapshot_path" mapstructure:"snapshot_path"`
}

// EnrichConfig configures candidate enrichment and registry matching.
type EnrichConfig struct {
	MaxRatings      int      `yaml:"max_ratings" mapstructure:"max_ratings"`
	NameLengthRatio float64  `yaml:"name_length_ratio" mapstructure:"name_length_ratio"`
	WordOverlap     float64  `yaml:"word_overlap" mapstructure:"word_overlap"`
	Workers         int      `yaml:"workers" mapstructure:"workers"`
	StaggerMs       int      `yaml:"stagger_ms" mapstructure:"stagger_ms"`
	SeedEmails      []string `yaml:"seed_emails" mapstructure:"seed_emails"`
	SeedMobiles     []string `yaml:"seed_mobiles" mapstructure:"seed_mobiles"`
}

// OutputConfig selects the lead table file.
type OutputConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NotionConfig enables the Notion lead sink when Token is set.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// StoreConfig enables run persistence when Driver is set.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RegionConfig points at the UK postcode table used by the region command.
type RegionConfig struct {
	PostcodeDB string `yaml:"postcode_db" mapstructure:"postcode_db"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory, if present, and
// overlays LEADFINDER_* environment variables on top of the defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEADFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Credentials and optional sinks default to empty so environment
	// variables bind to them.
	for _, key := range []string{
		"google.key", "companies_house.token", "notion.token", "notion.lead_db",
		"store.database_url", "output.format", "discovery.keywords_file",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("postcodes.base_url", "https://api.postcodes.io")
	v.SetDefault("companies_house.base_url", "https://api.company-information.service.gov.uk")
	v.SetDefault("companies_house.rate_limit", 2)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; LeadFinder/1.0)")
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.max_depth", 2)
	v.SetDefault("scrape.max_contact_pages", 3)
	v.SetDefault("discovery.radius_meters", 1000)
	v.SetDefault("discovery.stagger_ms", 250)
	v.SetDefault("discovery.settle_ms", 2000)
	v.SetDefault("discovery.concurrency", 8)
	v.SetDefault("discovery.snapshot_path", "candidates.json")
	v.SetDefault("enrich.max_ratings", 350)
	v.SetDefault("enrich.name_length_ratio", 0.63)
	v.SetDefault("enrich.word_overlap", 0.66)
	v.SetDefault("enrich.workers", 16)
	v.SetDefault("enrich.stagger_ms", 50)
	v.SetDefault("enrich.seed_emails", []string{"info@thepharmacycentre.com"})
	v.SetDefault("output.path", "leads.csv")
	v.SetDefault("store.driver", "")
	v.SetDefault("region.postcode_db", "postcodes.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
