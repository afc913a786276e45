package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/charlie-robison/pythia/internal/pipeline"
	"github.com/charlie-robison/pythia/internal/research"
	"github.com/charlie-robison/pythia/internal/risk"
	"github.com/charlie-robison/pythia/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Gamma      GammaConfig      `yaml:"gamma" mapstructure:"gamma"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Risk       RiskConfig       `yaml:"risk" mapstructure:"risk"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings. An empty key disables live
// research lookups.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GammaConfig holds market catalog API settings.
type GammaConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize     int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// BudgetConfig configures a pipeline's time and concurrency limits.
type BudgetConfig struct {
	PerTaskTimeoutSecs int `yaml:"per_task_timeout_secs" mapstructure:"per_task_timeout_secs"`
	StageTimeoutSecs   int `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	TotalTimeoutSecs   int `yaml:"total_timeout_secs" mapstructure:"total_timeout_secs"`
	Concurrency        int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries         int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs     int `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
}

// Budget converts to the pipeline budget type.
func (b BudgetConfig) Budget() pipeline.Budget {
	return pipeline.Budget{
		PerTaskTimeout: time.Duration(b.PerTaskTimeoutSecs) * time.Second,
		StageTimeout:   time.Duration(b.StageTimeoutSecs) * time.Second,
		TotalTimeout:   time.Duration(b.TotalTimeoutSecs) * time.Second,
		Concurrency:    b.Concurrency,
		MaxRetries:     b.MaxRetries,
		RetryDelay:     time.Duration(b.RetryDelaySecs) * time.Second,
	}
}

// ResearchConfig configures the research pipeline.
type ResearchConfig struct {
	Budget         BudgetConfig `yaml:"budget" mapstructure:"budget"`
	MaxNewsLinks   int          `yaml:"max_news_links" mapstructure:"max_news_links"`
	MaxKeyFindings int          `yaml:"max_key_findings" mapstructure:"max_key_findings"`
}

// AgentConfig converts to the research agent configuration.
func (c ResearchConfig) AgentConfig() research.Config {
	return research.Config{
		Budget:         c.Budget.Budget(),
		MaxNewsLinks:   c.MaxNewsLinks,
		MaxKeyFindings: c.MaxKeyFindings,
	}
}

// RiskConfig configures the risk pipeline.
type RiskConfig struct {
	Budget      BudgetConfig `yaml:"budget" mapstructure:"budget"`
	BatchSize   int          `yaml:"batch_size" mapstructure:"batch_size"`
	MaxFindings int          `yaml:"max_findings" mapstructure:"max_findings"`
}

// AgentConfig converts to the risk agent configuration.
func (c RiskConfig) AgentConfig() risk.Config {
	return risk.Config{
		Budget:      c.Budget.Budget(),
		BatchSize:   c.BatchSize,
		MaxFindings: c.MaxFindings,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PYTHIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pythia.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.page_size", 100)
	v.SetDefault("gamma.rate_limit_rps", 5)
	v.SetDefault("research.budget.per_task_timeout_secs", 90)
	v.SetDefault("research.budget.stage_timeout_secs", 60)
	v.SetDefault("research.budget.total_timeout_secs", 180)
	v.SetDefault("research.budget.concurrency", 10)
	v.SetDefault("research.budget.max_retries", 2)
	v.SetDefault("research.budget.retry_delay_secs", 1)
	v.SetDefault("research.max_news_links", 8)
	v.SetDefault("research.max_key_findings", 7)
	v.SetDefault("risk.budget.per_task_timeout_secs", 45)
	v.SetDefault("risk.budget.stage_timeout_secs", 30)
	v.SetDefault("risk.budget.total_timeout_secs", 90)
	v.SetDefault("risk.budget.concurrency", 10)
	v.SetDefault("risk.budget.max_retries", 2)
	v.SetDefault("risk.budget.retry_delay_secs", 1)
	v.SetDefault("risk.batch_size", 5)
	v.SetDefault("risk.max_findings", 20)

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

	return &cfg, nil
}

// Validate checks the configuration needed for a given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireKey := func() {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	}
	requireStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "research", "risk":
		requireKey()
		requireStore()
	case "markets":
		requireStore()
	case "serve":
		requireKey()
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
