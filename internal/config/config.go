package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/features"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/logging"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/scoring"
)

// #region types
// Config is the service configuration file.
type Config struct {
	Database    string         `yaml:"database" validate:"required"`
	RPCAddr     string         `yaml:"rpc_addr" validate:"required,hostname_port"`
	MetricsAddr string         `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Logging     LoggingConfig  `yaml:"logging"`
	Scoring     ScoringConfig  `yaml:"scoring"`
	Analysis    AnalysisConfig `yaml:"analysis"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// ScoringConfig defines one scoring algorithm version.
type ScoringConfig struct {
	AlgorithmVersion   string   `yaml:"algorithm_version" validate:"required"`
	EarlyStage         int      `yaml:"early_stage" validate:"gte=1"`
	LateStage          int      `yaml:"late_stage" validate:"gtfield=EarlyStage"`
	ChallengeStems     []string `yaml:"challenge_stems" validate:"min=1,dive,required"`
	VerificationEvents []string `yaml:"verification_events" validate:"min=1,dive,required"`
	EvidenceFacts      []string `yaml:"evidence_facts" validate:"dive,required"`
}

// AnalysisConfig drives the hypothesis report. The first condition is the
// reference.
type AnalysisConfig struct {
	Conditions []string        `yaml:"conditions" validate:"min=2,unique,dive,required"`
	Controls   []ControlConfig `yaml:"controls" validate:"dive"`
	Alpha      float64         `yaml:"alpha" validate:"gt=0,lt=1"`
	Robust     bool            `yaml:"robust"`
	Bootstrap  BootstrapConfig `yaml:"bootstrap"`
}

// ControlConfig declares one control variable.
type ControlConfig struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"oneof=numeric categorical"`
}

// BootstrapConfig controls the mediation bootstrap. A nil Seed draws a fresh
// seed per run.
type BootstrapConfig struct {
	Resamples int     `yaml:"resamples" validate:"gte=1"`
	Workers   int     `yaml:"workers" validate:"gte=1"`
	Seed      *uint64 `yaml:"seed"`
	Level     float64 `yaml:"level" validate:"gt=0,lt=1"`
}

// #endregion types

// #region defaults
// DefaultConfig returns a config that runs against a local database.
func DefaultConfig() *Config {
	sc := scoring.DefaultConfig()
	ac := analytics.DefaultConfig()

	conditions := make([]string, len(ac.Conditions))
	for i, c := range ac.Conditions {
		conditions[i] = string(c)
	}
	return &Config{
		Database:    "analytics.db",
		RPCAddr:     "localhost:7400",
		MetricsAddr: "localhost:9464",
		Logging:     LoggingConfig{Level: "info"},
		Scoring: ScoringConfig{
			AlgorithmVersion:   sc.AlgorithmVersion,
			EarlyStage:         sc.EarlyStage,
			LateStage:          sc.LateStage,
			ChallengeStems:     sc.Behavior.ChallengeStems,
			VerificationEvents: sc.Behavior.VerificationTypes,
			EvidenceFacts:      sc.EvidenceFacts,
		},
		Analysis: AnalysisConfig{
			Conditions: conditions,
			Alpha:      ac.Alpha,
			Robust:     ac.Robust,
			Bootstrap: BootstrapConfig{
				Resamples: ac.Bootstrap.Resamples,
				Workers:   ac.Bootstrap.Workers,
				Level:     ac.Bootstrap.Level,
			},
		},
	}
}

// #endregion defaults

// #region load
// Load reads the YAML file over the defaults, applies environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	c.Database = envOr("ANALYTICS_DB", c.Database)
	c.RPCAddr = envOr("ANALYTICS_RPC_ADDR", c.RPCAddr)
	c.MetricsAddr = envOr("ANALYTICS_METRICS_ADDR", c.MetricsAddr)
	c.Logging.Level = envOr("ANALYTICS_LOG_LEVEL", c.Logging.Level)
	if v := os.Getenv("ANALYTICS_BOOTSTRAP_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ANALYTICS_BOOTSTRAP_SEED: %w", err)
		}
		c.Analysis.Bootstrap.Seed = &seed
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
var validate = validator.New()

// Validate checks field constraints and that control names are unique and do
// not shadow a model variable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := map[string]bool{}
	for _, ctl := range c.Analysis.Controls {
		if analytics.ReservedName(ctl.Name) {
			return fmt.Errorf("invalid config: control %q collides with a model variable", ctl.Name)
		}
		if seen[ctl.Name] {
			return fmt.Errorf("invalid config: control %q declared twice", ctl.Name)
		}
		seen[ctl.Name] = true
	}
	return nil
}

// #endregion validate

// #region conversions
// ScoringParams returns the scoring parameters.
func (c *Config) ScoringParams() scoring.Config {
	return scoring.Config{
		AlgorithmVersion: c.Scoring.AlgorithmVersion,
		EarlyStage:       c.Scoring.EarlyStage,
		LateStage:        c.Scoring.LateStage,
		Behavior: features.BehaviorConfig{
			ChallengeStems:    c.Scoring.ChallengeStems,
			VerificationTypes: c.Scoring.VerificationEvents,
		},
		EvidenceFacts: c.Scoring.EvidenceFacts,
	}
}

// AnalyticsParams returns the report parameters.
func (c *Config) AnalyticsParams() analytics.Config {
	conditions := make([]records.Mode, len(c.Analysis.Conditions))
	for i, m := range c.Analysis.Conditions {
		conditions[i] = records.Mode(m)
	}
	controls := make([]analytics.ControlDecl, len(c.Analysis.Controls))
	for i, ctl := range c.Analysis.Controls {
		controls[i] = analytics.ControlDecl{Name: ctl.Name, Type: analytics.ControlType(ctl.Type)}
	}
	return analytics.Config{
		Conditions: conditions,
		Controls:   controls,
		Alpha:      c.Analysis.Alpha,
		Robust:     c.Analysis.Robust,
		Bootstrap: regression.BootstrapConfig{
			Resamples: c.Analysis.Bootstrap.Resamples,
			Workers:   c.Analysis.Bootstrap.Workers,
			Seed:      c.Analysis.Bootstrap.Seed,
			Level:     c.Analysis.Bootstrap.Level,
		},
	}
}

// Modes returns the configured conditions as record modes.
func (c *Config) Modes() []records.Mode {
	return c.AnalyticsParams().Conditions
}

// LoggerParams returns the logger settings.
func (c *Config) LoggerParams() logging.LoggerConfig {
	return logging.LoggerConfig{Level: c.Logging.Level, Development: c.Logging.Development}
}

// #endregion conversions
