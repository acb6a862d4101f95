package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Supabase   SupabaseConfig   `yaml:"supabase" mapstructure:"supabase"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	Governor   GovernorConfig   `yaml:"governor" mapstructure:"governor"`
	Hunt       HuntConfig       `yaml:"hunt" mapstructure:"hunt"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Query      QueryConfig      `yaml:"query" mapstructure:"query"`
	Runner     RunnerConfig     `yaml:"runner" mapstructure:"runner"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SupabaseConfig holds the hosted project settings used by the supabase driver.
type SupabaseConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	ServiceKey string `yaml:"service_key" mapstructure:"service_key"`
}

// SerperConfig holds the search provider settings. Keys form the rotation pool.
type SerperConfig struct {
	Keys    []string `yaml:"keys" mapstructure:"keys"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
}

// GovernorConfig configures provider call pacing.
type GovernorConfig struct {
	BaseDelayMs  int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	WindowSecs   int `yaml:"window_secs" mapstructure:"window_secs"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Resilience converts the settings to a resilience.GovernorConfig.
func (g GovernorConfig) Resilience() resilience.GovernorConfig {
	return resilience.FromGovernorConfig(g.BaseDelayMs, g.WindowSecs, g.CooldownSecs)
}

// HuntConfig configures a single pass.
type HuntConfig struct {
	CallTimeoutSecs int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxQueries      int    `yaml:"max_queries" mapstructure:"max_queries"`
	ResultsPerQuery int    `yaml:"results_per_query" mapstructure:"results_per_query"`
	Country         string `yaml:"country" mapstructure:"country"`
	Language        string `yaml:"language" mapstructure:"language"`
}

// CallTimeout returns the per-call provider timeout.
func (h HuntConfig) CallTimeout() time.Duration {
	return time.Duration(h.CallTimeoutSecs) * time.Second
}

// ClassifyConfig points at an optional term table overriding the embedded one.
type ClassifyConfig struct {
	TermsPath string `yaml:"terms_path" mapstructure:"terms_path"`
}

// QueryConfig points at an optional location/template table.
type QueryConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// RunnerConfig sizes the background pass pool.
type RunnerConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// ScheduleConfig lists recurring passes.
type ScheduleConfig struct {
	Hunts []ScheduledHunt `yaml:"hunts" mapstructure:"hunts"`
}

// ScheduledHunt is one cron-triggered pass.
type ScheduledHunt struct {
	Cron       string `yaml:"cron" mapstructure:"cron"`
	Intent     string `yaml:"intent" mapstructure:"intent"`
	City       string `yaml:"city" mapstructure:"city"`
	TimeFilter string `yaml:"time_filter" mapstructure:"time_filter"`
	Actor      string `yaml:"user_id" mapstructure:"user_id"`
	Mode       string `yaml:"mode" mapstructure:"mode"`
}

// SearchIntent converts the entry to a model.SearchIntent.
func (s ScheduledHunt) SearchIntent() model.SearchIntent {
	return model.SearchIntent{
		Phrase:  s.Intent,
		City:    s.City,
		Recency: s.TimeFilter,
		Actor:   s.Actor,
		Mode:    s.Mode,
	}
}

// EventsConfig configures the optional message broker.
type EventsConfig struct {
	AMQPURL    string `yaml:"amqp_url" mapstructure:"amqp_url"`
	Exchange   string `yaml:"exchange" mapstructure:"exchange"`
	RoutingKey string `yaml:"routing_key" mapstructure:"routing_key"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	SubmitPerMin  int      `yaml:"submit_per_min" mapstructure:"submit_per_min"`
	SubmitBurst   int      `yaml:"submit_burst" mapstructure:"submit_burst"`
	ShutdownSecs  int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	EventsBacklog int      `yaml:"events_backlog" mapstructure:"events_backlog"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	AbortRateThreshold float64 `yaml:"abort_rate_threshold" mapstructure:"abort_rate_threshold"`
	DroughtRuns        int     `yaml:"drought_runs" mapstructure:"drought_runs"`
	CheckIntervalSecs  int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackHours      int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CostThresholdUSD   float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// PricingConfig holds search provider pricing.
type PricingConfig struct {
	Serper SerperPricing `yaml:"serper" mapstructure:"serper"`
}

// SerperPricing holds Serper credit pricing.
type SerperPricing struct {
	PerCredit        float64 `yaml:"per_credit" mapstructure:"per_credit"`
	ResultsPerCredit int     `yaml:"results_per_credit" mapstructure:"results_per_credit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables use the HUNTER_ prefix (HUNTER_STORE_DATABASE_URL);
// the provider key pool is also read from SERPER_KEYS (comma separated).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("serper.keys", "HUNTER_SERPER_KEYS", "SERPER_KEYS")
	_ = v.BindEnv("supabase.url", "HUNTER_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.service_key", "HUNTER_SUPABASE_SERVICE_KEY", "SUPABASE_SERVICE_KEY")

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("governor.base_delay_ms", 1000)
	v.SetDefault("governor.window_secs", 60)
	v.SetDefault("governor.cooldown_secs", 10)
	v.SetDefault("hunt.call_timeout_secs", 30)
	v.SetDefault("hunt.max_queries", 0)
	v.SetDefault("hunt.results_per_query", 50)
	v.SetDefault("hunt.country", "eg")
	v.SetDefault("hunt.language", "ar")
	v.SetDefault("runner.workers", 2)
	v.SetDefault("runner.queue_size", 32)
	v.SetDefault("events.exchange", "hunter.events")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.submit_per_min", 6)
	v.SetDefault("server.submit_burst", 2)
	v.SetDefault("server.shutdown_secs", 10)
	v.SetDefault("server.events_backlog", 50)
	v.SetDefault("monitoring.abort_rate_threshold", 0.5)
	v.SetDefault("monitoring.drought_runs", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("pricing.serper.per_credit", 0.001)
	v.SetDefault("pricing.serper.results_per_credit", 10)
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
	cfg.Serper.Keys = splitKeys(cfg.Serper.Keys)

	return &cfg, nil
}

// splitKeys flattens comma-separated entries (as delivered by environment
// variables), strips surrounding quotes and drops blanks.
func splitKeys(in []string) []string {
	var out []string
	for _, s := range in {
		for _, k := range strings.Split(s, ",") {
			k = strings.TrimSpace(strings.Trim(strings.TrimSpace(k), `"'`))
			if k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// Validate checks the settings required by mode: "hunt", "serve" or "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	checkStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the sqlite driver")
			}
		case "supabase":
			if c.Supabase.URL == "" {
				errs = append(errs, "supabase.url is required")
			}
			if c.Supabase.ServiceKey == "" {
				errs = append(errs, "supabase.service_key is required")
			}
		default:
			errs = append(errs, "store.driver must be one of postgres, sqlite, supabase")
		}
	}

	checkHunt := func() {
		if c.Hunt.CallTimeoutSecs <= 0 {
			errs = append(errs, "hunt.call_timeout_secs must be > 0")
		}
		if c.Hunt.MaxQueries < 0 {
			errs = append(errs, "hunt.max_queries must be >= 0")
		}
		if c.Governor.BaseDelayMs < 0 || c.Governor.WindowSecs < 0 || c.Governor.CooldownSecs < 0 {
			errs = append(errs, "governor values must be >= 0")
		}
	}

	switch mode {
	case "store":
		checkStore()
	case "hunt":
		checkStore()
		checkHunt()
	case "serve":
		checkStore()
		checkHunt()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Runner.Workers < 1 || c.Runner.Workers > 32 {
			errs = append(errs, "runner.workers must be between 1 and 32")
		}
		if c.Runner.QueueSize < 1 {
			errs = append(errs, "runner.queue_size must be > 0")
		}
		if c.Monitoring.Enabled && (c.Monitoring.AbortRateThreshold <= 0 || c.Monitoring.AbortRateThreshold > 1) {
			errs = append(errs, "monitoring.abort_rate_threshold must be in (0, 1]")
		}
		for i, h := range c.Schedule.Hunts {
			if h.Cron == "" || h.Intent == "" || h.City == "" {
				errs = append(errs, "schedule.hunts["+strconv.Itoa(i)+"] needs cron, intent and city")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
