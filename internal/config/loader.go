package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".westbay"

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed files return an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional global and project config paths.
// A YAML file is preferred over JSON when both exist.
func DefaultPaths() (global, project string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return pick(filepath.Join(homeDir, DirName)), pick(DirName), nil
}

func pick(dir string) string {
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.json")
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	global, project, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(global, project)
}

// mergeConfigFile decodes path over base. Scalars present in the file
// replace the base values; map entries are merged by key.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, base)
	} else {
		err = json.Unmarshal(data, base)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Workflow.ConcurrencyLimit < 1 {
		return fmt.Errorf("workflow.concurrency_limit must be at least 1, got %d", c.Workflow.ConcurrencyLimit)
	}
	switch cost.PolicyMode(strings.ToLower(c.Workflow.CostPolicy)) {
	case "", cost.PolicyProceed, cost.PolicyBlockRed, cost.PolicyApprove:
	case cost.PolicyMaxCost:
		if c.Workflow.MaxCostUSD <= 0 {
			return errors.New("workflow.max_cost_usd must be positive for the max_cost policy")
		}
	default:
		return fmt.Errorf("unknown workflow.cost_policy %q", c.Workflow.CostPolicy)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	for name, a := range c.Agents {
		if _, ok := c.Providers[a.Provider]; !ok {
			return fmt.Errorf("agent %q references unknown provider %q", name, a.Provider)
		}
	}
	return nil
}

// BackendConfig resolves the backend settings for role. The second result
// is false when the role has no agent entry.
func (c *Config) BackendConfig(role runstate.Role) (backend.Config, bool, error) {
	a, ok := c.Agents[string(role)]
	if !ok {
		return backend.Config{}, false, nil
	}
	p, ok := c.Providers[a.Provider]
	if !ok {
		return backend.Config{}, true, fmt.Errorf("agent %q references unknown provider %q", role, a.Provider)
	}
	model := p.Model
	if a.Model != "" {
		model = a.Model
	}
	return backend.Config{
		Type:         p.Type,
		Command:      p.Command,
		Args:         p.Args,
		Model:        model,
		SystemPrompt: a.SystemPrompt,
		Timeout:      p.Timeout.Std(),
	}, true, nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() backend.RetryPolicy {
	p := backend.DefaultRetryPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.InitialInterval > 0 {
		p.InitialInterval = c.Retry.InitialInterval.Std()
	}
	if c.Retry.MaxInterval > 0 {
		p.MaxInterval = c.Retry.MaxInterval.Std()
	}
	if c.Retry.Multiplier > 0 {
		p.Multiplier = c.Retry.Multiplier
	}
	return p
}

// FetchConfig converts the scraper section.
func (c *Config) FetchConfig() backend.FetchConfig {
	return backend.FetchConfig{
		Timeout:           c.Scraper.Timeout.Std(),
		RequestsPerSecond: c.Scraper.RequestsPerSecond,
		Burst:             c.Scraper.Burst,
		UserAgent:         c.Scraper.UserAgent,
		Policy:            c.RetryPolicy(),
	}
}

// Prices returns the configured price table. Unset prices select the
// calculator defaults.
func (c *Config) Prices() cost.PriceTable {
	return cost.PriceTable{InputPer1M: c.Workflow.InputPer1M, OutputPer1M: c.Workflow.OutputPer1M}
}
