package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides overlays CEOPILOT_* environment variables on top of the
// loaded configuration. Environment always wins over file values so deploys
// can pin settings without editing the workspace config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CEOPILOT_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("CEOPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CEOPILOT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("CEOPILOT_MAX_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scheduler.MaxTasks = n
		}
	}
	if v := os.Getenv("CEOPILOT_SCHEDULER_CRON"); v != "" {
		c.Scheduler.Cron = v
	}
	if v := os.Getenv("CEOPILOT_NORM_RULES"); v != "" {
		c.Norms.RulesPath = v
	}
}
