package planner

import (
	"github.com/vikasvdk5/WestBay/internal/decision"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Assignments maps each staffed role to the task descriptions it should
// work on.
type Assignments map[runstate.Role][]string

// DistributeTasks combines the staffing decision's subtasks with the
// plan's sub-tasks for every role the decision staffs. Writer tasks from
// the plan are kept for final synthesis.
func DistributeTasks(p *Plan, d decision.StaffingDecision) Assignments {
	out := Assignments{}
	for _, role := range d.RequiredRoles() {
		var tasks []string
		if a, ok := d.Allocation(role); ok {
			tasks = append(tasks, a.Subtasks...)
		}
		tasks = append(tasks, p.TasksFor(role)...)
		out[role] = tasks
	}
	if w := p.TasksFor(runstate.RoleWriter); len(w) > 0 {
		out[runstate.RoleWriter] = w
	}
	return out
}
