package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

var (
	// ErrCycle is returned when sub-task dependencies form a cycle.
	ErrCycle = errors.New("plan contains a dependency cycle")
	// ErrMissingDependency is returned when a sub-task depends on an unknown id.
	ErrMissingDependency = errors.New("plan references a missing dependency")
	// ErrDuplicateTask is returned when two sub-tasks share an id.
	ErrDuplicateTask = errors.New("plan contains duplicate task ids")
)

// Validate checks the plan's dependency graph and returns the sub-task ids
// in a valid execution order.
func Validate(p *Plan) ([]string, error) {
	ids := make(map[string]bool, len(p.SubTasks))
	for _, t := range p.SubTasks {
		if ids[t.ID] {
			return nil, fmt.Errorf("task %q: %w", t.ID, ErrDuplicateTask)
		}
		ids[t.ID] = true
	}

	var edges []toposort.Edge
	for _, t := range p.SubTasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		for _, dep := range t.DependsOn {
			if !ids[dep] {
				return nil, fmt.Errorf("task %q depends on %q: %w", t.ID, dep, ErrMissingDependency)
			}
			edges = append(edges, toposort.Edge{dep, t.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(ids) {
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		var lost []string
		for _, t := range p.SubTasks {
			if !seen[t.ID] {
				lost = append(lost, t.ID)
			}
		}
		return nil, fmt.Errorf("%w: unreachable tasks %s", ErrCycle, strings.Join(lost, ", "))
	}
	return order, nil
}
