package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		global        string // file name and content, empty for none
		globalBody    string
		project       string
		projectBody   string
		expectAgents  int
		checkAgent    string
		expectProv    string
		expectPolicy  string
		expectTimeout time.Duration
		expectError   bool
	}{
		{
			name:          "No config files - returns defaults",
			expectAgents:  5,
			expectPolicy:  "proceed",
			expectTimeout: 30 * time.Second,
		},
		{
			name:   "Global JSON adds agent and provider",
			global: "config.json",
			globalBody: `{
				"providers": {"local": {"type": "command", "command": "llm"}},
				"agents": {"writer": {"provider": "local"}}
			}`,
			expectAgents:  6,
			checkAgent:    "writer",
			expectProv:    "local",
			expectPolicy:  "proceed",
			expectTimeout: 30 * time.Second,
		},
		{
			name:    "Project YAML overrides scalar sections",
			project: "config.yaml",
			projectBody: `
workflow:
  cost_policy: block_red
scraper:
  timeout: 5s
agents:
  analyst:
    provider: claude
    model: opus
`,
			expectAgents:  5,
			checkAgent:    "analyst",
			expectProv:    "claude",
			expectPolicy:  "block_red",
			expectTimeout: 5 * time.Second,
		},
		{
			name:          "Project beats global",
			global:        "config.json",
			globalBody:    `{"workflow": {"cost_policy": "approve"}}`,
			project:       "config.yml",
			projectBody:   "workflow:\n  cost_policy: max_cost\n  max_cost_usd: 2\n",
			expectAgents:  5,
			expectPolicy:  "max_cost",
			expectTimeout: 30 * time.Second,
		},
		{
			name:        "Malformed JSON",
			global:      "config.json",
			globalBody:  `{"workflow": `,
			expectError: true,
		},
		{
			name:        "Malformed duration",
			project:     "config.yaml",
			projectBody: "scraper:\n  timeout: soon\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			globalPath := filepath.Join(dir, "global", "config.json")
			projectPath := filepath.Join(dir, "project", "config.json")
			if tt.global != "" {
				globalPath = filepath.Join(dir, "global", tt.global)
				writeFile(t, globalPath, tt.globalBody)
			}
			if tt.project != "" {
				projectPath = filepath.Join(dir, "project", tt.project)
				writeFile(t, projectPath, tt.projectBody)
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if len(cfg.Agents) != tt.expectAgents {
				t.Errorf("agents mismatch: got %d, want %d", len(cfg.Agents), tt.expectAgents)
			}
			if tt.checkAgent != "" {
				if got := cfg.Agents[tt.checkAgent].Provider; got != tt.expectProv {
					t.Errorf("provider of %s mismatch: got %s, want %s", tt.checkAgent, got, tt.expectProv)
				}
			}
			if cfg.Workflow.CostPolicy != tt.expectPolicy {
				t.Errorf("cost policy mismatch: got %s, want %s", cfg.Workflow.CostPolicy, tt.expectPolicy)
			}
			if got := cfg.Scraper.Timeout.Std(); got != tt.expectTimeout {
				t.Errorf("scraper timeout mismatch: got %s, want %s", got, tt.expectTimeout)
			}
			if cfg.Retry.MaxAttempts != 4 {
				t.Errorf("untouched retry section changed: got %d attempts", cfg.Retry.MaxAttempts)
			}
		})
	}
}

func TestLoadNumericDurationIsSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"retry": {"max_attempts": 2, "initial_interval": 1.5}}`)

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Retry.InitialInterval.Std(); got != 1500*time.Millisecond {
		t.Errorf("initial interval mismatch: got %s, want 1.5s", got)
	}
	if got := cfg.RetryPolicy(); got.MaxAttempts != 2 || got.MaxInterval != 10*time.Second {
		t.Errorf("retry policy mismatch: got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Workflow.ConcurrencyLimit = 0 }, true},
		{"max cost without limit", func(c *Config) { c.Workflow.CostPolicy = "max_cost" }, true},
		{"max cost with limit", func(c *Config) {
			c.Workflow.CostPolicy = "max_cost"
			c.Workflow.MaxCostUSD = 1
		}, false},
		{"unknown policy", func(c *Config) { c.Workflow.CostPolicy = "pray" }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"dangling provider", func(c *Config) {
			c.Agents["analyst"] = AgentConfig{Provider: "missing"}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackendConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["claude"] = ProviderConfig{Type: "claude", Command: "claude", Model: "sonnet", Timeout: Duration(time.Minute)}
	cfg.Agents[string(runstate.RoleAnalyst)] = AgentConfig{Provider: "claude", Model: "opus", SystemPrompt: "analyze"}

	bc, ok, err := cfg.BackendConfig(runstate.RoleAnalyst)
	if err != nil || !ok {
		t.Fatalf("BackendConfig failed: ok=%v err=%v", ok, err)
	}
	if bc.Model != "opus" {
		t.Errorf("model mismatch: got %s, want opus", bc.Model)
	}
	if bc.SystemPrompt != "analyze" || bc.Timeout != time.Minute {
		t.Errorf("unexpected backend config: %+v", bc)
	}

	bc, _, _ = cfg.BackendConfig(runstate.RoleCollector)
	if bc.Model != "sonnet" {
		t.Errorf("provider model not inherited: got %s", bc.Model)
	}

	if _, ok, _ := cfg.BackendConfig(runstate.RoleWriter); ok {
		t.Error("writer has no agent entry and should not resolve")
	}

	cfg.Agents["analyst"] = AgentConfig{Provider: "nope"}
	if _, _, err := cfg.BackendConfig(runstate.RoleAnalyst); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Setenv("WESTBAY_WORKFLOW_PARALLEL", "true")
	t.Setenv("WESTBAY_WORKFLOW_COST_POLICY", "block_red")
	t.Setenv("WESTBAY_STORAGE_RETENTION_DAYS", "30")
	t.Setenv("WESTBAY_WORKFLOW_APPROVAL_TIMEOUT", "45s")

	v := NewViper()
	v.Set(KeyServerAddr, "127.0.0.1:9000")

	cfg := DefaultConfig()
	cfg.ApplyOverrides(v)

	if !cfg.Workflow.Parallel {
		t.Error("parallel not overridden from environment")
	}
	if cfg.Workflow.CostPolicy != "block_red" {
		t.Errorf("cost policy mismatch: got %s, want block_red", cfg.Workflow.CostPolicy)
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("retention mismatch: got %d, want 30", cfg.Storage.RetentionDays)
	}
	if cfg.Workflow.ApprovalTimeout.Std() != 45*time.Second {
		t.Errorf("approval timeout mismatch: got %s", cfg.Workflow.ApprovalTimeout.Std())
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr mismatch: got %s", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unset key changed: level %s", cfg.Logging.Level)
	}
	if cfg.RetentionPeriod() != 30*24*time.Hour {
		t.Errorf("retention period mismatch: got %s", cfg.RetentionPeriod())
	}
}
