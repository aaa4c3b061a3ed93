package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/runstate"
	"github.com/vikasvdk5/WestBay/internal/tui"
)

type runOptions struct {
	reqs     requirementsFlags
	session  string
	parallel bool
	watch    bool
	yes      bool
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a report in the foreground",
		Long: `Run creates a session from the requirement flags (or --file) and drives
the report workflow to completion. --session resumes an interrupted run
from its last recorded node.`,
		Example: `  westbay run --topic "EV battery market" --pages 20 --sources 10
  westbay run --file requirements.yaml --parallel --watch
  westbay run --session 3f0c... --yes`,
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
			return ro.run(cmd, a)
		},
	}

	ro.reqs.register(cmd)
	cmd.Flags().StringVar(&ro.session, "session", "", "resume an existing session instead of creating one")
	cmd.Flags().BoolVar(&ro.parallel, "parallel", false, "run independent research roles concurrently")
	cmd.Flags().BoolVarP(&ro.watch, "watch", "w", false, "show a live progress view")
	cmd.Flags().BoolVarP(&ro.yes, "yes", "y", false, "approve the cost estimate without asking")
	cmd.Flags().String("cost-policy", "", "cost policy: proceed, block_red, max_cost, approve")
	cmd.Flags().Float64("max-cost", 0, "cost limit in USD for the max_cost policy")
	opts.bind(cmd, map[string]string{
		config.KeyCostPolicy: "cost-policy",
		config.KeyMaxCost:    "max-cost",
	})
	return cmd
}

func (ro *runOptions) run(cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	state, err := ro.loadSession(ctx, cmd, a)
	if err != nil {
		return err
	}
	id := state.SessionID
	fmt.Fprintf(out, "%s %s\n", bold("Session:"), id)
	printEstimate(out, a.calc.Estimate(state.Requirements))

	approvals := orchestrator.NewApprovalChannel(1, ro.decider(cmd.InOrStdin(), out))
	approvals.Start(ctx)
	defer approvals.Stop()
	defer cancel()

	policy, err := a.policy(approvals)
	if err != nil {
		return err
	}
	wf, err := a.workflow(policy, ro.parallel)
	if err != nil {
		return err
	}

	var final *runstate.RunState
	if ro.watch {
		final, err = ro.watchRun(ctx, cancel, a, wf, id)
	} else {
		sub := a.bus.SubscribeSession(id, 256)
		done := make(chan struct{})
		go func() {
			defer close(done)
			printEvents(out, sub)
		}()
		final, err = wf.Run(ctx, id)
		a.bus.Unsubscribe(sub)
		<-done
	}
	if final != nil {
		fmt.Fprintln(out)
		printState(out, final, false)
	}
	if err != nil {
		return err
	}
	if final.Status != runstate.StatusCompleted {
		return fmt.Errorf("report run ended with status %s", final.Status)
	}
	return nil
}

// loadSession loads the session to resume or creates a new one.
func (ro *runOptions) loadSession(ctx context.Context, cmd *cobra.Command, a *app) (*runstate.RunState, error) {
	if ro.session != "" {
		state, err := a.registry.Get(ctx, ro.session)
		if err != nil {
			return nil, err
		}
		if state.Status.IsTerminal() {
			return nil, fmt.Errorf("session %s already finished with status %s", state.SessionID, state.Status)
		}
		return state, nil
	}
	req, request, err := ro.reqs.resolve(cmd)
	if err != nil {
		return nil, err
	}
	return a.registry.Create(ctx, uuid.NewString(), request, req)
}

// decider answers cost approvals. The live view owns the terminal, so it
// cannot prompt; without --yes it rejects. Otherwise the user confirms
// inline, or line by line when in is not a terminal.
func (ro *runOptions) decider(in io.Reader, out io.Writer) orchestrator.DecideFunc {
	return func(ctx context.Context, sessionID string, e cost.Estimate) (bool, error) {
		switch {
		case ro.yes:
			return true, nil
		case ro.watch:
			return false, nil
		}
		var ok bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Approval needed for session %s", sessionID)).
				Description(fmt.Sprintf("Estimated cost %s %.4f (%s budget). Proceed?",
					e.Currency, e.TotalCost, e.Budget.Status)).
				Affirmative("Proceed").
				Negative("Cancel").
				Value(&ok),
		)).
			WithInput(in).
			WithOutput(out).
			WithShowHelp(false).
			WithAccessible(!isTerminal(in))
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, fmt.Errorf("approval prompt: %w", err)
		}
		return ok, nil
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

type runResult struct {
	state *runstate.RunState
	err   error
}

// watchRun drives the workflow behind the live view. Quitting the view
// cancels the run.
func (ro *runOptions) watchRun(ctx context.Context, cancel context.CancelFunc, a *app, wf *orchestrator.Workflow, id string) (*runstate.RunState, error) {
	model := tui.New(a.bus, id)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	results := make(chan runResult, 1)
	go func() {
		state, err := wf.Run(ctx, id)
		results <- runResult{state: state, err: err}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-results
		return nil, fmt.Errorf("progress view: %w", err)
	}

	select {
	case r := <-results:
		return r.state, r.err
	default:
	}
	cancel()
	r := <-results
	return r.state, r.err
}
