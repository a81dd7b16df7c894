package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridian-aml/riskwatch/internal/ledger"
	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/threshold"
)

// Config holds the full application configuration. Threshold values and
// window behavior live here, never in code: they are versioned alongside the
// config file.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Articles   []string         `yaml:"articles" mapstructure:"articles"`
	Critical   []string         `yaml:"critical_crimes" mapstructure:"critical_crimes"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Alerts     AlertsConfig     `yaml:"alerts" mapstructure:"alerts"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the external data root. Every other path is derived
// from Root, which RISKWATCH_DATA_ROOT overrides.
type DataConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// ReferenceDir holds one golden JSON document per test article.
func (d DataConfig) ReferenceDir() string { return filepath.Join(d.Root, "reference_outputs") }

// CurrentDir holds the freshly produced assessment per test article.
func (d DataConfig) CurrentDir() string { return filepath.Join(d.Root, "current_outputs") }

// LogsDir holds monthly point files and the verdict log.
func (d DataConfig) LogsDir() string { return filepath.Join(d.Root, "logs") }

// VerdictLog is the append-only line-delimited verdict log.
func (d DataConfig) VerdictLog() string { return filepath.Join(d.LogsDir(), "verdicts.jsonl") }

// ProductivityFeed is the externally maintained productivity metric file.
func (d DataConfig) ProductivityFeed() string {
	return filepath.Join(d.Root, "production_metrics", "productivity.json")
}

// LedgerConfig configures the two ledger backends. An empty SQLitePath
// defaults to <data root>/ledger.db; an empty PostgresURL disables the
// analytical projection.
type LedgerConfig struct {
	SQLitePath  string            `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresURL string            `yaml:"postgres_url" mapstructure:"postgres_url"`
	Pool        ledger.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// BoundConfig is the configured form of a metric threshold. Direction is
// declared explicitly: "higher" means higher values are better.
type BoundConfig struct {
	Critical  float64 `yaml:"critical" mapstructure:"critical"`
	Warning   float64 `yaml:"warning" mapstructure:"warning"`
	Direction string  `yaml:"direction" mapstructure:"direction"`
}

// Bound converts the configured form to the evaluator's form.
func (b BoundConfig) Bound() threshold.Bound {
	return threshold.Bound{
		Critical:       b.Critical,
		Warning:        b.Warning,
		HigherIsBetter: b.Direction != "lower",
	}
}

// ThresholdsConfig enumerates per-metric bounds for each window kind.
type ThresholdsConfig struct {
	Monthly   map[string]BoundConfig `yaml:"monthly" mapstructure:"monthly"`
	Quarterly map[string]BoundConfig `yaml:"quarterly" mapstructure:"quarterly"`
	Biannual  map[string]BoundConfig `yaml:"biannual" mapstructure:"biannual"`
}

// ThresholdsFor returns the evaluator config for one window kind.
func (c *Config) ThresholdsFor(kind model.WindowKind) threshold.Config {
	var bounds map[string]BoundConfig
	switch kind {
	case model.WindowQuarterly:
		bounds = c.Thresholds.Quarterly
	case model.WindowBiannual:
		bounds = c.Thresholds.Biannual
	default:
		bounds = c.Thresholds.Monthly
	}
	cfg := make(threshold.Config, len(bounds))
	for name, b := range bounds {
		cfg[name] = b.Bound()
	}
	return cfg
}

// CriticalCrimes returns the configured critical-crime set, restricted to
// the closed vocabulary.
func (c *Config) CriticalCrimes() map[model.CrimeCategory]bool {
	set := make(map[model.CrimeCategory]bool, len(c.Critical))
	for _, s := range c.Critical {
		cc := model.CrimeCategory(s)
		if model.ValidCrime(cc) {
			set[cc] = true
		}
	}
	return set
}

// AlertsConfig configures notification sinks for critical verdicts.
type AlertsConfig struct {
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	SlackToken   string `yaml:"slack_token" mapstructure:"slack_token"`
	SlackChannel string `yaml:"slack_channel" mapstructure:"slack_channel"`
}

// ScheduleConfig holds cron expressions for the built-in schedule daemon.
// Empty expressions disable the corresponding cadence.
type ScheduleConfig struct {
	Monthly   string `yaml:"monthly" mapstructure:"monthly"`
	Quarterly string `yaml:"quarterly" mapstructure:"quarterly"`
	Biannual  string `yaml:"biannual" mapstructure:"biannual"`
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
	v.SetEnvPrefix("RISKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if cfg.Ledger.SQLitePath == "" {
		cfg.Ledger.SQLitePath = filepath.Join(cfg.Data.Root, "ledger.db")
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading file or
// environment, used by `config init` to write a starter file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.root", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("articles", []string{"article1", "article2", "article3", "article4", "article5"})
	v.SetDefault("critical_crimes", []string{
		string(model.CrimeMoneyLaundering),
		string(model.CrimeSanctionsEvasion),
		string(model.CrimeTerroristFinancing),
	})

	// One authoritative threshold set: 0.85 critical / 0.90 warning on both
	// similarity metrics for test windows, and the 400 articles/person cap
	// (lower is better) for the bi-annual productivity window.
	for _, kind := range []string{"monthly", "quarterly"} {
		for _, metric := range []string{model.MetricEntitySimilarity, model.MetricCrimeSimilarity} {
			v.SetDefault("thresholds."+kind+"."+metric+".critical", 0.85)
			v.SetDefault("thresholds."+kind+"."+metric+".warning", 0.90)
			v.SetDefault("thresholds."+kind+"."+metric+".direction", "higher")
		}
	}
	// Any critical-crime miss is an immediate failure whatever the overall
	// similarity figures look like.
	for _, kind := range []string{"monthly", "quarterly"} {
		v.SetDefault("thresholds."+kind+"."+model.MetricCriticalMisses+".critical", 0)
		v.SetDefault("thresholds."+kind+"."+model.MetricCriticalMisses+".warning", 0)
		v.SetDefault("thresholds."+kind+"."+model.MetricCriticalMisses+".direction", "lower")
	}

	v.SetDefault("thresholds.biannual."+model.MetricArticlesPerPerson+".critical", 400)
	v.SetDefault("thresholds.biannual."+model.MetricArticlesPerPerson+".warning", 360)
	v.SetDefault("thresholds.biannual."+model.MetricArticlesPerPerson+".direction", "lower")

	v.SetDefault("ledger.pool.max_conns", 4)
	v.SetDefault("ledger.pool.min_conns", 1)
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
