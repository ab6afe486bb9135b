// Package config holds all ceoPilot configuration. Config is loaded from
// YAML, overlaid with CEOPILOT_* environment variables, and may be
// hot-reloaded through the fsnotify watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ceoPilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Router thresholds and cost policy
	Router RouterConfig `yaml:"router"`

	// Memory write/retrieval policy
	Memory MemoryConfig `yaml:"memory"`

	// Scheduler batch settings
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Norm rule table overrides
	Norms NormsConfig `yaml:"norms"`

	// Epistemic gating thresholds
	Epistemic EpistemicConfig `yaml:"epistemic"`

	// Second-order gating thresholds
	SecondOrder SecondOrderConfig `yaml:"second_order"`

	// Persistent store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RouterConfig configures tier resolution and the cost-aware downgrade.
type RouterConfig struct {
	// Novelty/ambiguity thresholds that raise the preferred tier.
	StandardNoveltyThreshold float64 `yaml:"standard_novelty_threshold"`
	AdvancedNoveltyThreshold float64 `yaml:"advanced_novelty_threshold"`

	// Cost-aware downgrade gates (routine tasks only).
	MinSamples                  int     `yaml:"min_samples"`
	QualityFloor                float64 `yaml:"quality_floor"`
	PassRateFloor               float64 `yaml:"pass_rate_floor"`
	QualityImprovementThreshold float64 `yaml:"quality_improvement_threshold"`
}

// MemoryConfig configures the memory policy. Durations are strings
// ("72h", "30m") parsed with time.ParseDuration.
type MemoryConfig struct {
	MinConfidenceToWrite float64 `yaml:"min_confidence_to_write"`
	MaxRecords           int     `yaml:"max_records"`
	RetrievalFloor       float64 `yaml:"retrieval_floor"`
	DecayAfter           string  `yaml:"decay_after"`
	DecayInterval        string  `yaml:"decay_interval"`
	DecayFactor          float64 `yaml:"decay_factor"`
	ExpiryWindow         string  `yaml:"expiry_window"`
}

// SchedulerConfig configures scheduler passes and the cron service.
type SchedulerConfig struct {
	MaxTasks   int    `yaml:"max_tasks"`
	DeferDelay string `yaml:"defer_delay"`
	Cron       string `yaml:"cron"` // cron spec for the serve daemon
}

// NormsConfig configures the behavioral-norm rule table.
type NormsConfig struct {
	// RulesPath points at a YAML file of extra NormRule entries. Rules from
	// the file are appended to the built-in table (or replace it when
	// ReplaceDefaults is set).
	RulesPath       string `yaml:"rules_path"`
	ReplaceDefaults bool   `yaml:"replace_defaults"`
}

// EpistemicConfig configures novelty/evidence gating.
type EpistemicConfig struct {
	NoveltyThreshold float64 `yaml:"novelty_threshold"`
}

// SecondOrderConfig configures second-order effects gating.
type SecondOrderConfig struct {
	UncertaintyThreshold float64 `yaml:"uncertainty_threshold"`
}

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"` // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Name:    "ceopilot",
		Version: "1.0.0",
		Router: RouterConfig{
			StandardNoveltyThreshold:    0.4,
			AdvancedNoveltyThreshold:    0.7,
			MinSamples:                  5,
			QualityFloor:                0.7,
			PassRateFloor:               0.8,
			QualityImprovementThreshold: 0.15,
		},
		Memory: MemoryConfig{
			MinConfidenceToWrite: 0.2,
			MaxRecords:           500,
			RetrievalFloor:       0.1,
			DecayAfter:           "24h",
			DecayInterval:        "24h",
			DecayFactor:          0.9,
			ExpiryWindow:         "2160h", // 90 days
		},
		Scheduler: SchedulerConfig{
			MaxTasks:   10,
			DeferDelay: "60m",
			Cron:       "@every 5m",
		},
		Epistemic: EpistemicConfig{
			NoveltyThreshold: 0.6,
		},
		SecondOrder: SecondOrderConfig{
			UncertaintyThreshold: 0.7,
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(".ceopilot", "ceopilot.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from the given YAML file, overlaying the defaults, then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Duration parses one of the config's duration strings, falling back to the
// given default when the string is empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
