// Package config loads and validates snapshot bot configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ledger providers.
const (
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
	ProviderRedis    = "redis"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Bot     BotConfig     `mapstructure:"bot"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// BotConfig governs what is polled and how replies look.
type BotConfig struct {
	Subreddit     string        `mapstructure:"subreddit"`
	BotSubreddit  string        `mapstructure:"bot_subreddit"`
	Domains       []string      `mapstructure:"domains"`
	QuoteWikiPage string        `mapstructure:"quote_wiki_page"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ShortLinkBase string        `mapstructure:"short_link_base"`
	SiteRoot      string        `mapstructure:"site_root"`
	LabelMin      int           `mapstructure:"label_min"`
	LabelMax      int           `mapstructure:"label_max"`
}

// LedgerConfig selects and configures the processed-submission store.
type LedgerConfig struct {
	Provider            string        `mapstructure:"provider"`
	DSN                 string        `mapstructure:"dsn"`
	Table               string        `mapstructure:"table"`
	MaxConns            int32         `mapstructure:"max_conns"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	RecordTTLDays       int           `mapstructure:"record_ttl_days"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	SQLitePath          string        `mapstructure:"sqlite_path"`
	RedisAddr           string        `mapstructure:"redis_addr"`
	RedisPassword       string        `mapstructure:"redis_password"`
	RedisDB             int           `mapstructure:"redis_db"`
	RedisKey            string        `mapstructure:"redis_key"`
}

// ArchiveConfig controls archive submissions.
type ArchiveConfig struct {
	SubmitURL         string        `mapstructure:"submit_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RewriteHosts      []string      `mapstructure:"rewrite_hosts"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
}

// RedditConfig holds API credentials and endpoints.
type RedditConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Operator          string        `mapstructure:"operator"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	APIBase           string        `mapstructure:"api_base"`
	TokenURL          string        `mapstructure:"token_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ListingLimit      int           `mapstructure:"listing_limit"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
}

// MetricsConfig configures the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// legacyEnv maps keys to the bare environment names older deployments use.
var legacyEnv = map[string]string{
	"ledger.dsn":      "DATABASE_URL",
	"reddit.username": "USER_NAME",
	"reddit.password": "PASSWORD",
}

// Load builds a Config from an optional .env file, an optional config file
// and the environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("SNAPSHOTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range legacyEnv {
		prefixed := "SNAPSHOTBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

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
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("bot.subreddit", "")
	v.SetDefault("bot.bot_subreddit", "")
	v.SetDefault("bot.domains", []string{})
	v.SetDefault("bot.quote_wiki_page", "quotes")
	v.SetDefault("bot.poll_interval", 10*time.Second)
	v.SetDefault("bot.short_link_base", "http://redd.it/")
	v.SetDefault("bot.site_root", "http://www.reddit.com")
	v.SetDefault("bot.label_min", 35)
	v.SetDefault("bot.label_max", 40)
	v.SetDefault("ledger.provider", ProviderPostgres)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.table", "oldposts")
	v.SetDefault("ledger.max_conns", 2)
	v.SetDefault("ledger.connect_timeout", 10*time.Second)
	v.SetDefault("ledger.record_ttl_days", 60)
	v.SetDefault("ledger.maintenance_interval", time.Hour)
	v.SetDefault("ledger.sqlite_path", "snapshotbot.db")
	v.SetDefault("ledger.redis_addr", "")
	v.SetDefault("ledger.redis_password", "")
	v.SetDefault("ledger.redis_db", 0)
	v.SetDefault("ledger.redis_key", "snapshotbot:oldposts")
	v.SetDefault("archive.submit_url", "https://archive.today/submit/")
	v.SetDefault("archive.timeout", 30*time.Second)
	v.SetDefault("archive.user_agent", "snapshotbot/1.0")
	v.SetDefault("archive.rewrite_hosts", []string{"reddit.com", "redd.it"})
	v.SetDefault("archive.max_attempts", 1)
	v.SetDefault("archive.requests_per_minute", 0)
	v.SetDefault("reddit.user_agent", "snapshotbot/1.0")
	v.SetDefault("reddit.operator", "")
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.username", "")
	v.SetDefault("reddit.password", "")
	v.SetDefault("reddit.api_base", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.timeout", 30*time.Second)
	v.SetDefault("reddit.listing_limit", 25)
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "snapshotbot")
}

func (c *Config) normalize() {
	c.Bot.Domains = cleanList(c.Bot.Domains)
	c.Archive.RewriteHosts = cleanList(c.Archive.RewriteHosts)
	c.Ledger.Provider = strings.ToLower(strings.TrimSpace(c.Ledger.Provider))
	if c.Bot.BotSubreddit == "" {
		c.Bot.BotSubreddit = c.Bot.Subreddit
	}
}

// cleanList lowercases entries, splitting any that still hold commas.
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Bot.Subreddit == "" {
		return fmt.Errorf("bot.subreddit must be set")
	}
	if len(c.Bot.Domains) == 0 {
		return fmt.Errorf("bot.domains must list at least one domain or \"all\"")
	}
	if c.Bot.PollInterval <= 0 {
		return fmt.Errorf("bot.poll_interval must be > 0")
	}
	if c.Bot.LabelMin <= 0 || c.Bot.LabelMax < c.Bot.LabelMin {
		return fmt.Errorf("bot.label_min must be > 0 and <= bot.label_max")
	}
	if c.Reddit.Username == "" || c.Reddit.Password == "" {
		return fmt.Errorf("reddit.username and reddit.password must be set")
	}
	if c.Ledger.RecordTTLDays <= 0 {
		return fmt.Errorf("ledger.record_ttl_days must be > 0")
	}
	if c.Ledger.MaintenanceInterval < 0 {
		return fmt.Errorf("ledger.maintenance_interval must be >= 0")
	}
	switch c.Ledger.Provider {
	case ProviderPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn must be set for the postgres provider")
		}
	case ProviderSQLite:
		if c.Ledger.SQLitePath == "" {
			return fmt.Errorf("ledger.sqlite_path must be set for the sqlite provider")
		}
	case ProviderRedis:
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("ledger.redis_addr must be set for the redis provider")
		}
	default:
		return fmt.Errorf("ledger.provider %q is not one of postgres, sqlite, redis", c.Ledger.Provider)
	}
	if c.Archive.MaxAttempts < 1 {
		return fmt.Errorf("archive.max_attempts must be >= 1")
	}
	if c.Archive.Timeout <= 0 {
		return fmt.Errorf("archive.timeout must be > 0")
	}
	return nil
}

// RecordTTL converts the ledger retention into a duration.
func (c Config) RecordTTL() time.Duration {
	return time.Duration(c.Ledger.RecordTTLDays) * 24 * time.Hour
}
