package planner

import (
	"cmp"
	"slices"
)

// OptimizePlan orders sub-tasks by dependency count, then priority. The
// sort is stable, so ties keep their original order. The plan is modified
// in place and returned.
func OptimizePlan(p *Plan) *Plan {
	slices.SortStableFunc(p.SubTasks, func(a, b SubTask) int {
		if c := cmp.Compare(len(a.DependsOn), len(b.DependsOn)); c != 0 {
			return c
		}
		return cmp.Compare(a.Priority, b.Priority)
	})
	return p
}

// ExecutableTasks returns the sub-tasks that are not completed and whose
// dependencies are all completed, in plan order.
func ExecutableTasks(p *Plan, completed []string) []SubTask {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	var out []SubTask
	for _, t := range p.SubTasks {
		if done[t.ID] {
			continue
		}
		ready := true
		for _, dep := range t.DependsOn {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t)
		}
	}
	return out
}
