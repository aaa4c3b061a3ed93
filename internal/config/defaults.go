package config

import (
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// DefaultConfig returns the default configuration: one claude provider shared
// by every model-backed role.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"claude": {
				Type:    "claude",
				Command: "claude",
				Timeout: Duration(120 * time.Second),
			},
		},
		Agents: map[string]AgentConfig{
			string(runstate.RoleLeadResearcher): {
				Provider:     "claude",
				SystemPrompt: "You plan market research and break requests into sub-tasks.",
			},
			string(runstate.RoleStructure): {
				Provider:     "claude",
				SystemPrompt: "You design the section structure of professional research reports.",
			},
			string(runstate.RoleCollector): {
				Provider:     "claude",
				SystemPrompt: "You find authoritative web sources for market research.",
			},
			string(runstate.RoleAnalyst): {
				Provider:     "claude",
				SystemPrompt: "You analyze research data and propose charts backed by numbers.",
			},
			string(runstate.RoleFallbackContent): {
				Provider:     "claude",
				SystemPrompt: "You write clear, factual report sections for business readers.",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:     4,
			InitialInterval: Duration(2 * time.Second),
			MaxInterval:     Duration(10 * time.Second),
			Multiplier:      2,
		},
		Workflow: WorkflowConfig{
			ConcurrencyLimit: 3,
			CostPolicy:       "proceed",
			ApprovalTimeout:  Duration(10 * time.Minute),
		},
		Scraper: ScraperConfig{
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 2,
			Burst:             2,
			UserAgent:         "WestBay-Research/1.0",
		},
		Storage: StorageConfig{
			DBPath:        ".westbay/westbay.db",
			ArtifactsDir:  ".westbay/artifacts",
			CacheSize:     128,
			RetentionDays: 7,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
