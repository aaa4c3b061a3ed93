package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the state of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), state, false)
			return nil
		},
	}
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print the finished report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if state.Status != runstate.StatusCompleted {
				return fmt.Errorf("report not yet completed: status %s", state.Status)
			}
			out, ok := state.Output(runstate.RoleWriter)
			var report roles.Report
			if !ok || out.Decode(&report) != nil {
				return errors.New("session has no readable report")
			}

			text := report.Markdown
			if render {
				text, err = glamour.Render(report.Markdown, "auto")
				if err != nil {
					return fmt.Errorf("rendering report: %w", err)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "render Markdown for the terminal")
	return cmd
}

func newSessionsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.registry.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tUPDATED\tTOPIC")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.SessionID, statusColor(r.Status)(string(r.Status)),
					r.UpdatedAt.Local().Format(time.DateTime), r.Topic)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.registry.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.artifacts.Cleanup(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newCleanupCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove sessions past the retention period",
		Long: `Cleanup deletes sessions not updated within the retention period
(storage.retention_days, default 7) together with their artifacts, and
removes artifact directories that no longer belong to a session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Storage.RetentionDays <= 0 {
				return errors.New("retention must be at least one day")
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.cleanup(cmd.Context(), cfg.RetentionPeriod(), nil)
			for _, id := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d removed\n", len(removed))
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "retention in days (overrides storage.retention_days)")
	opts.bind(cmd, map[string]string{config.KeyRetentionDays: "days"})
	return cmd
}
