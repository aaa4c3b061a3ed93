package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as a string such as
// "90s" in JSON and YAML files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

// set accepts a duration string or a number of seconds.
func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(x * float64(time.Second))
	case int:
		*d = Duration(time.Duration(x) * time.Second)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// ProviderConfig defines a model transport (CLI command, args, defaults).
// Providers are separate from agents -- multiple roles can share one provider.
type ProviderConfig struct {
	Type    string   `json:"type" yaml:"type"`                       // backend type: "claude" or "command"
	Command string   `json:"command" yaml:"command"`                 // executable name
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`   // extra args for the command type
	Model   string   `json:"model,omitempty" yaml:"model,omitempty"` // default model
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AgentConfig binds a research role to a provider and prompt.
type AgentConfig struct {
	Provider     string `json:"provider" yaml:"provider"`                               // key into Providers
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`                 // overrides the provider model
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"` // role-specific system prompt
}

// RetryConfig mirrors backend.RetryPolicy.
type RetryConfig struct {
	MaxAttempts     int      `json:"max_attempts" yaml:"max_attempts"`
	InitialInterval Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     Duration `json:"max_interval" yaml:"max_interval"`
	Multiplier      float64  `json:"multiplier" yaml:"multiplier"`
}

// WorkflowConfig controls graph execution and the cost policy.
type WorkflowConfig struct {
	Parallel         bool     `json:"parallel" yaml:"parallel"`
	ConcurrencyLimit int      `json:"concurrency_limit" yaml:"concurrency_limit"`
	CostPolicy       string   `json:"cost_policy" yaml:"cost_policy"` // proceed, block_red, max_cost, approve
	MaxCostUSD       float64  `json:"max_cost_usd,omitempty" yaml:"max_cost_usd,omitempty"`
	ApprovalTimeout  Duration `json:"approval_timeout,omitempty" yaml:"approval_timeout,omitempty"`
	InputPer1M       float64  `json:"input_price_per_1m,omitempty" yaml:"input_price_per_1m,omitempty"`
	OutputPer1M      float64  `json:"output_price_per_1m,omitempty" yaml:"output_price_per_1m,omitempty"`
}

// ScraperConfig configures outbound HTTP for the research roles.
type ScraperConfig struct {
	Timeout           Duration `json:"timeout" yaml:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int      `json:"burst" yaml:"burst"`
	UserAgent         string   `json:"user_agent" yaml:"user_agent"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	DBPath        string `json:"db_path" yaml:"db_path"`
	ArtifactsDir  string `json:"artifacts_dir" yaml:"artifacts_dir"`
	CacheSize     int    `json:"cache_size" yaml:"cache_size"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`
}

// ServerConfig configures the REST API.
type ServerConfig struct {
	Addr            string   `json:"addr" yaml:"addr"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	EnableCORS      bool     `json:"enable_cors" yaml:"enable_cors"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// Config is the top-level configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Agents    map[string]AgentConfig    `json:"agents" yaml:"agents"`
	Retry     RetryConfig               `json:"retry" yaml:"retry"`
	Workflow  WorkflowConfig            `json:"workflow" yaml:"workflow"`
	Scraper   ScraperConfig             `json:"scraper" yaml:"scraper"`
	Storage   StorageConfig             `json:"storage" yaml:"storage"`
	Server    ServerConfig              `json:"server" yaml:"server"`
	Logging   LoggingConfig             `json:"logging" yaml:"logging"`
}
