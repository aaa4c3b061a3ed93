package orchestrator

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// parallelWaves groups the optional research roles for concurrent
// execution. The analyst reads collector and API output, so it runs in the
// wave after them.
var parallelWaves = [][]Node{
	{NodeCollector, NodeAPIResearcher},
	{NodeAnalyst},
}

// runParallel executes the required research roles wave by wave. Each role
// sets its own completion flag; the registry merges their updates in
// arrival order. A role that fails without completing skips the waves
// after its own; the caller moves on to fallback content either way.
func (w *Workflow) runParallel(ctx context.Context, state *runstate.RunState) (*runstate.RunState, error) {
	sessionID := state.SessionID
	for _, wave := range parallelWaves {
		var nodes []Node
		for _, n := range wave {
			if slices.Contains(state.RequiredRoles, nodeRole(n)) {
				nodes = append(nodes, n)
			}
		}
		if len(nodes) == 0 {
			continue
		}

		snapshot := state
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.cfg.ConcurrencyLimit)
		for _, n := range nodes {
			g.Go(func() error {
				_, err := w.runNode(gctx, snapshot, n)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		next, err := w.registry.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload session after parallel wave: %w", err)
		}
		state = next

		failed := slices.ContainsFunc(nodes, func(n Node) bool {
			return !state.Completion[nodeRole(n)]
		})
		if failed {
			logging.WithSession(w.logger, sessionID).Warn("research wave failed, skipping remaining research roles")
			return state, nil
		}
	}
	return state, nil
}
