package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WESTBAY_WORKFLOW_PARALLEL.
const EnvPrefix = "WESTBAY"

// Override keys understood by ApplyOverrides. CLI flags bind to the same keys.
const (
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
	KeyServerAddr    = "server.addr"
	KeyEnableCORS    = "server.enable_cors"
	KeyDBPath        = "storage.db_path"
	KeyArtifactsDir  = "storage.artifacts_dir"
	KeyRetentionDays = "storage.retention_days"
	KeyParallel      = "workflow.parallel"
	KeyConcurrency   = "workflow.concurrency_limit"
	KeyCostPolicy    = "workflow.cost_policy"
	KeyMaxCost       = "workflow.max_cost_usd"
	KeyApprovalWait  = "workflow.approval_timeout"
	KeyScraperRPS    = "scraper.requests_per_second"
	KeyScraperAgent  = "scraper.user_agent"
	KeyRetryAttempts = "retry.max_attempts"
)

// NewViper returns a viper instance reading WESTBAY_* environment variables
// for the override keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (by flag or environment) onto cfg.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	float := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	str(KeyLogLevel, &c.Logging.Level)
	str(KeyLogFormat, &c.Logging.Format)
	str(KeyServerAddr, &c.Server.Addr)
	if v.IsSet(KeyEnableCORS) {
		c.Server.EnableCORS = v.GetBool(KeyEnableCORS)
	}
	str(KeyDBPath, &c.Storage.DBPath)
	str(KeyArtifactsDir, &c.Storage.ArtifactsDir)
	integer(KeyRetentionDays, &c.Storage.RetentionDays)
	if v.IsSet(KeyParallel) {
		c.Workflow.Parallel = v.GetBool(KeyParallel)
	}
	integer(KeyConcurrency, &c.Workflow.ConcurrencyLimit)
	str(KeyCostPolicy, &c.Workflow.CostPolicy)
	float(KeyMaxCost, &c.Workflow.MaxCostUSD)
	if v.IsSet(KeyApprovalWait) {
		c.Workflow.ApprovalTimeout = Duration(v.GetDuration(KeyApprovalWait))
	}
	float(KeyScraperRPS, &c.Scraper.RequestsPerSecond)
	str(KeyScraperAgent, &c.Scraper.UserAgent)
	integer(KeyRetryAttempts, &c.Retry.MaxAttempts)
}

// RetentionPeriod is the age after which sessions are cleaned up.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}
