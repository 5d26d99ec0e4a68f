package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/compare"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
)

// Source kinds.
const (
	KindTraffic  = "traffic"
	KindSales    = "sales"
	KindLaunches = "launches"
	KindRaw      = "raw"
)

// Sheet transports.
const (
	TransportCSV    = "csv"
	TransportGviz   = "gviz"
	TransportValues = "values"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Logging    logging.Config          `mapstructure:"logging"`
	Sheets     SheetsConfig            `mapstructure:"sheets"`
	Sources    map[string]SourceConfig `mapstructure:"sources"`
	Backend    BackendConfig           `mapstructure:"backend"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Scheduler  SchedulerConfig         `mapstructure:"scheduler"`
	Monitoring MonitoringConfig        `mapstructure:"monitoring"`
	Alerting   AlertingConfig          `mapstructure:"alerting"`
	Export     ExportConfig            `mapstructure:"export"`
	HTTP       HTTPConfig              `mapstructure:"http"`
	Comparison ComparisonConfig        `mapstructure:"comparison"`
	Keywords   KeywordsConfig          `mapstructure:"keywords"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SheetsConfig covers Google Sheets access shared by every source.
type SheetsConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBase      time.Duration `mapstructure:"retry_base"`
	RetryJitter    time.Duration `mapstructure:"retry_jitter"`
	DocsBaseURL    string        `mapstructure:"docs_base_url"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
}

// SourceConfig describes one spreadsheet tab.
type SourceConfig struct {
	Kind          string        `mapstructure:"kind"`
	SpreadsheetID string        `mapstructure:"spreadsheet_id"`
	Sheet         string        `mapstructure:"sheet"`
	GID           string        `mapstructure:"gid"`
	Range         string        `mapstructure:"range"`
	Transport     string        `mapstructure:"transport"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	DefaultYear   int           `mapstructure:"default_year"`
}

// BackendConfig captures the dashboard backend connectivity.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	PageSize       int           `mapstructure:"page_size"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MonitoringConfig drives the backend daily check.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	WindowHours int    `mapstructure:"window_hours"`
	MinSeverity string `mapstructure:"min_severity"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	Cooldown  time.Duration  `mapstructure:"cooldown"`
	// Retention bounds how long delivered alerts are kept in the database.
	// Zero keeps them forever.
	Retention time.Duration  `mapstructure:"retention"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Directory     string `mapstructure:"directory"`
	MaxDataPoints int    `mapstructure:"max_data_points"`
}

// HTTPConfig configures the read API.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ComparisonConfig overrides the launch diff heuristics.
type ComparisonConfig struct {
	PriorityMetrics []string `mapstructure:"priority_metrics"`
	InverseKeywords []string `mapstructure:"inverse_keywords"`
}

// KeywordsConfig replaces the header heuristics. An empty list keeps the
// built-in table.
type KeywordsConfig struct {
	Summary    []aggregate.Keyword        `mapstructure:"summary"`
	Categories []compare.CategoryKeywords `mapstructure:"categories"`
	Percentage []string                   `mapstructure:"percentage"`
	Monetary   []string                   `mapstructure:"monetary"`
}

// SummaryKeywords returns the configured headline table or the default one.
func (c *Config) SummaryKeywords() aggregate.Keywords {
	if len(c.Keywords.Summary) > 0 {
		return aggregate.Keywords(c.Keywords.Summary)
	}
	return aggregate.DefaultSummaryKeywords()
}

// CompareRules applies the comparison and keyword overrides to the default rules.
func (c *Config) CompareRules() compare.Rules {
	rules := compare.DefaultRules()
	if len(c.Comparison.PriorityMetrics) > 0 {
		rules.PriorityMetrics = c.Comparison.PriorityMetrics
	}
	if len(c.Comparison.InverseKeywords) > 0 {
		rules.InverseKeywords = c.Comparison.InverseKeywords
	}
	if len(c.Keywords.Categories) > 0 {
		rules.Categories = c.Keywords.Categories
	}
	if len(c.Keywords.Percentage) > 0 {
		rules.PercentageKeywords = c.Keywords.Percentage
	}
	if len(c.Keywords.Monetary) > 0 {
		rules.MonetaryKeywords = c.Keywords.Monetary
	}
	return rules
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHEETRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applySourceDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sheetradar")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("sheets.request_timeout", "15s")
	v.SetDefault("sheets.user_agent", "sheetradar/1.0")
	v.SetDefault("sheets.max_retries", 3)
	v.SetDefault("sheets.retry_base", "1s")
	v.SetDefault("sheets.retry_jitter", "250ms")

	v.SetDefault("backend.request_timeout", "15s")
	v.SetDefault("backend.cache_ttl", "5m")
	v.SetDefault("backend.page_size", 500)

	v.SetDefault("scheduler.interval", "10m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x73686472))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.window_hours", 24)
	v.SetDefault("monitoring.min_severity", "MEDIUM")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "6h")
	v.SetDefault("alerting.retention", "720h")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.directory", ".")
	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) applySourceDefaults() {
	for name, src := range c.Sources {
		if src.Transport == "" {
			src.Transport = TransportCSV
			if src.Sheet != "" {
				src.Transport = TransportGviz
			}
		}
		if src.CacheTTL <= 0 {
			src.CacheTTL = 5 * time.Minute
		}
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.Transport = strings.ToLower(strings.TrimSpace(src.Transport))
		c.Sources[name] = src
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Sheets.RequestTimeout <= 0 {
		return fmt.Errorf("sheets.request_timeout must be greater than zero")
	}
	if c.Sheets.MaxRetries < 0 {
		return fmt.Errorf("sheets.max_retries cannot be negative")
	}
	for _, name := range c.SourceNames() {
		src := c.Sources[name]
		switch src.Kind {
		case KindTraffic, KindSales, KindLaunches, KindRaw:
		default:
			return fmt.Errorf("sources.%s.kind %q is not one of traffic, sales, launches, raw", name, src.Kind)
		}
		if src.SpreadsheetID == "" {
			return fmt.Errorf("sources.%s.spreadsheet_id must be set", name)
		}
		switch src.Transport {
		case TransportCSV, TransportGviz:
		case TransportValues:
			if src.Range == "" {
				return fmt.Errorf("sources.%s.range is required for the values transport", name)
			}
			if c.Sheets.APIKey == "" {
				return fmt.Errorf("sources.%s uses the values transport but sheets.api_key is empty", name)
			}
		default:
			return fmt.Errorf("sources.%s.transport %q is not one of csv, gviz, values", name, src.Transport)
		}
	}
	if c.Monitoring.Enabled {
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("monitoring requires backend.base_url")
		}
		if c.Monitoring.WindowHours <= 0 {
			return fmt.Errorf("monitoring.window_hours must be greater than zero")
		}
	}
	switch strings.ToUpper(c.Monitoring.MinSeverity) {
	case "LOW", "MEDIUM", "HIGH":
	default:
		return fmt.Errorf("monitoring.min_severity %q is not one of LOW, MEDIUM, HIGH", c.Monitoring.MinSeverity)
	}
	for i, kw := range c.Keywords.Summary {
		if kw.Name == "" || len(kw.Synonyms) == 0 {
			return fmt.Errorf("keywords.summary[%d] needs a name and synonyms", i)
		}
	}
	if c.Alerting.Retention < 0 {
		return fmt.Errorf("alerting.retention cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// SourceNames returns the configured source names in sorted order.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
