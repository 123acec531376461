// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sources   []SourceSeed    `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs pagination and extraction behavior.
type CrawlConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	AcceptLanguage     string `mapstructure:"accept_language"`
	DelaySeconds       int    `mapstructure:"delay_seconds"`
	MaxPages           int    `mapstructure:"max_pages"`
	ArchiveMaxPages    int    `mapstructure:"archive_max_pages"`
	MinTitleLength     int    `mapstructure:"min_title_length"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
}

// Delay converts the configured inter-page delay to a duration.
func (c CrawlConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// HTTPTimeout converts the configured fetch timeout to a duration.
func (c CrawlConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	NavTimeoutSeconds int `mapstructure:"nav_timeout_seconds"`
	ScrollSettleMs    int `mapstructure:"scroll_settle_ms"`
}

// NavTimeout converts the navigation timeout to a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// ScrollSettle converts the post-scroll settle pause to a duration.
func (c BrowserConfig) ScrollSettle() time.Duration {
	return time.Duration(c.ScrollSettleMs) * time.Millisecond
}

// DatabaseConfig selects and configures the article store backend.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for new-article event publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// SnapshotsConfig controls raw listing-page archival.
type SnapshotsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceSeed is one configured gazette category. Seeds are applied at
// bootstrap; rows that already exist keep their state.
type SourceSeed struct {
	Key        string `mapstructure:"key"`
	NameAr     string `mapstructure:"name_ar"`
	NameEn     string `mapstructure:"name_en"`
	CategoryID int    `mapstructure:"cat_id"`
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	Icon       string `mapstructure:"icon"`
	Color      string `mapstructure:"color"`
	Order      int    `mapstructure:"order"`
}

// Source converts a seed to the core source type.
func (s SourceSeed) Source() gazette.Source {
	return gazette.Source{
		Key:        s.Key,
		NameAr:     s.NameAr,
		NameEn:     s.NameEn,
		CategoryID: s.CategoryID,
		URL:        s.URL,
		Enabled:    s.Enabled,
		Icon:       s.Icon,
		Color:      s.Color,
		Order:      s.Order,
	}
}

// SeedSources converts the configured seeds for bootstrap.
func (c Config) SeedSources() []gazette.Source {
	out := make([]gazette.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, s.Source())
	}
	return out
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAZETTE")
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
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("crawl.accept_language", "ar-SA,ar;q=0.9,en;q=0.8")
	v.SetDefault("crawl.delay_seconds", 2)
	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.archive_max_pages", 200)
	v.SetDefault("crawl.min_title_length", 5)
	v.SetDefault("crawl.http_timeout_seconds", 15)
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.scroll_settle_ms", 1000)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("snapshots.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// DefaultSources is the seed list of Umm Al-Qura gazette categories.
func DefaultSources() []SourceSeed {
	return []SourceSeed{
		{Key: "royal_orders", NameAr: "أوامر ملكية", NameEn: "Royal Orders", CategoryID: 7, URL: "https://uqn.gov.sa/?cat=7", Enabled: true, Icon: "crown", Color: "#1B4332", Order: 1},
		{Key: "royal_decrees", NameAr: "مراسيم ملكية", NameEn: "Royal Decrees", CategoryID: 8, URL: "https://uqn.gov.sa/?cat=8", Enabled: true, Icon: "scroll", Color: "#40916C", Order: 2},
		{Key: "cabinet_decisions", NameAr: "قرارات مجلس الوزراء", NameEn: "Cabinet Decisions", CategoryID: 9, URL: "https://uqn.gov.sa/?cat=9", Enabled: true, Icon: "landmark", Color: "#2D6A4F", Order: 3},
		{Key: "ministerial_decisions", NameAr: "قرارات وزارية", NameEn: "Ministerial Decisions", CategoryID: 10, URL: "https://uqn.gov.sa/?cat=10", Enabled: true, Icon: "briefcase", Color: "#52B788", Order: 4},
		{Key: "laws_regulations", NameAr: "أنظمة ولوائح", NameEn: "Laws and Regulations", CategoryID: 11, URL: "https://uqn.gov.sa/?cat=11", Enabled: true, Icon: "gavel", Color: "#74C69D", Order: 5},
		{Key: "decisions_regulations", NameAr: "قرارات وتنظيمات", NameEn: "Decisions and Arrangements", CategoryID: 6, URL: "https://uqn.gov.sa/?cat=6", Enabled: true, Icon: "file-text", Color: "#95D5B2", Order: 6},
		{Key: "authorities", NameAr: "هيئات ومؤسسات", NameEn: "Authorities", CategoryID: 12, URL: "https://uqn.gov.sa/?cat=12", Enabled: true, Icon: "building", Color: "#B7E4C7", Order: 7},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.http_timeout_seconds must be > 0")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when database.driver is postgres")
		}
	default:
		return fmt.Errorf("database.driver must be memory or postgres, got %q", c.Database.Driver)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	if c.Snapshots.Enabled && c.Snapshots.GCSBucket == "" {
		return fmt.Errorf("snapshots.gcs_bucket must be set when snapshots are enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Key == "" || s.URL == "" {
			return fmt.Errorf("every source needs a key and a url")
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("duplicate source key %q", s.Key)
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}
