package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	globalConfig  string
	projectConfig string
	v             *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "westbay",
		Short: "Multi-agent market research report generator",
		Long: `WestBay turns report requirements into a staffed team of research roles:
it estimates cost, plans the work, collects web and API data, analyzes it
and writes a cited Markdown report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.globalConfig, "config", "", "global config file (default ~/.westbay/config.yaml)")
	flags.StringVar(&opts.projectConfig, "project-config", "", "project config file (default .westbay/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("db", "", "SQLite database path")
	flags.String("artifacts", "", "artifact directory")
	_ = opts.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = opts.v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = opts.v.BindPFlag(config.KeyDBPath, flags.Lookup("db"))
	_ = opts.v.BindPFlag(config.KeyArtifactsDir, flags.Lookup("artifacts"))

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newEstimateCmd(opts),
		newPlanCmd(opts),
		newStatusCmd(opts),
		newReportCmd(opts),
		newSessionsCmd(opts),
		newCleanupCmd(opts),
	)
	return root
}

// load resolves configuration: defaults, then the global and project
// files, then flags and WESTBAY_* environment variables.
func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	global, project, err := config.DefaultPaths()
	if err != nil {
		return nil, nil, err
	}
	if o.globalConfig != "" {
		global = o.globalConfig
	}
	if o.projectConfig != "" {
		project = o.projectConfig
	}

	cfg, err := config.Load(global, project)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyOverrides(o.v)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format), nil
}

// bind maps flags of cmd onto config keys. Binding happens in PreRunE so
// that only the executing command's flags feed the shared viper instance.
func (o *globalOptions) bind(cmd *cobra.Command, keys map[string]string) {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for key, name := range keys {
			if err := o.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
		return nil
	}
}
