package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vikasvdk5/WestBay/internal/api"
	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// janitorInterval is how often serve removes expired sessions.
const janitorInterval = time.Hour

func newServeCmd(opts *globalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Serve starts the HTTP API. Report generation runs in the background;
clients poll /api/report-status/:id and fetch /api/report/:id when done.
With cost_policy "approve", runs above the green budget wait for
POST /api/approvals/:id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			approvals := orchestrator.NewPendingApprovals(cfg.Workflow.ApprovalTimeout.Std())
			policy, err := a.policy(approvals)
			if err != nil {
				return err
			}
			wf, err := a.workflow(policy, false)
			if err != nil {
				return err
			}

			launcher := orchestrator.NewLauncher(wf, logger)
			launcher.OnFinish = func(id string, state *runstate.RunState, err error) {
				if state != nil {
					logger.Info("report run finished", "session_id", id, "status", state.Status, "report", orchestrator.ReportPath(state))
				}
			}

			srv, err := api.New(api.Deps{
				Registry:   a.registry,
				Launcher:   launcher,
				Calculator: a.calc,
				Approvals:  approvals,
				Artifacts:  a.artifacts,
				Logger:     logger,
			}, api.Options{Debug: debug, EnableCORS: cfg.Server.EnableCORS})
			if err != nil {
				return err
			}

			if cfg.Storage.RetentionDays > 0 {
				go janitor(ctx, a, cfg, launcher)
			}

			runErr := srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout.Std())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := launcher.Shutdown(shutdownCtx); err != nil {
				logger.Warn("report runs did not stop in time", "error", err)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("cors", false, "allow cross-origin requests")
	cmd.Flags().String("cost-policy", "", "cost policy: proceed, block_red, max_cost, approve")
	cmd.Flags().Float64("max-cost", 0, "cost limit in USD for the max_cost policy")
	opts.bind(cmd, map[string]string{
		config.KeyServerAddr: "addr",
		config.KeyEnableCORS: "cors",
		config.KeyCostPolicy: "cost-policy",
		config.KeyMaxCost:    "max-cost",
	})
	return cmd
}

// janitor periodically removes sessions past the retention period.
func janitor(ctx context.Context, a *app, cfg *config.Config, launcher *orchestrator.Launcher) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.cleanup(ctx, cfg.RetentionPeriod(), launcher.Running)
			if err != nil {
				a.logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				a.logger.Info("removed expired sessions", "count", len(removed))
			}
		}
	}
}
