package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/decision"
	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func budgetColor(s cost.BudgetStatus) func(...any) string {
	switch s {
	case cost.BudgetGreen:
		return green
	case cost.BudgetYellow:
		return yellow
	default:
		return red
	}
}

func statusColor(s runstate.Status) func(...any) string {
	switch s {
	case runstate.StatusCompleted:
		return green
	case runstate.StatusError:
		return red
	default:
		return yellow
	}
}

func printEstimate(w io.Writer, e cost.Estimate) {
	paint := budgetColor(e.Budget.Status)
	fmt.Fprintf(w, "%s %s %.4f (range %.4f-%.4f), %d tokens\n",
		bold("Estimated cost:"), e.Currency, e.TotalCost, e.MinCost, e.MaxCost, e.Tokens.Total)
	fmt.Fprintf(w, "%s %s - %s\n", bold("Budget:"), paint(string(e.Budget.Status)), e.Budget.Message)

	roles := make([]runstate.Role, 0, len(e.Breakdown))
	for r := range e.Breakdown {
		roles = append(roles, r)
	}
	slices.Sort(roles)
	for _, r := range roles {
		s := e.Breakdown[r]
		fmt.Fprintf(w, "  %-22s %8d tokens %5.1f%%\n", r, s.Tokens, s.Percentage)
	}
	for _, rec := range e.Recommendations {
		fmt.Fprintf(w, "  %s %s\n", faint("-"), rec)
	}
}

func printDecision(w io.Writer, d decision.StaffingDecision) {
	fmt.Fprintf(w, "%s %d agents (%s complexity)\n", bold("Staffing:"), d.TotalAgents, d.Complexity)
	for _, a := range d.Allocations {
		fmt.Fprintf(w, "  %-22s x%d  %s\n", a.Role, a.Count, faint(a.Reasoning))
	}
}

// printEvents writes one line per workflow event until sub is closed.
func printEvents(w io.Writer, sub <-chan events.Event) {
	for e := range sub {
		switch e := e.(type) {
		case events.NodeStartedEvent:
			fmt.Fprintf(w, "%s %s\n", faint("->"), e.Node)
		case events.NodeCompletedEvent:
			mark := green("ok")
			if e.Degraded {
				mark = yellow("degraded")
			}
			fmt.Fprintf(w, "   %s %s %s\n", mark, e.Node, faint(e.Duration.Round(time.Millisecond)))
		case events.NodeFailedEvent:
			fmt.Fprintf(w, "   %s %s: %v\n", red("failed"), e.Node, e.Err)
		case events.WorkflowFinishedEvent:
			fmt.Fprintf(w, "%s %s in %v\n", bold("Finished:"), statusColor(e.Status)(string(e.Status)), e.Duration.Round(time.Second))
		}
	}
}

func printState(w io.Writer, s *runstate.RunState, running bool) {
	fmt.Fprintf(w, "%s %s\n", bold("Session:"), s.SessionID)
	fmt.Fprintf(w, "%s %s\n", bold("Topic:"), s.Requirements.Topic)
	status := statusColor(s.Status)(string(s.Status))
	if running {
		status += " " + faint("(running)")
	}
	fmt.Fprintf(w, "%s %s\n", bold("Status:"), status)
	if s.CurrentAgent != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Current:"), s.CurrentAgent)
	}
	if len(s.RequiredRoles) > 0 {
		_, missing := runstate.AllComplete(s.RequiredRoles, s.Completion)
		fmt.Fprintf(w, "%s %d/%d required roles complete\n", bold("Progress:"),
			len(s.RequiredRoles)-len(missing), len(s.RequiredRoles))
	}
	if len(s.CompletedTasks) > 0 {
		fmt.Fprintf(w, "%s %s\n", bold("Tasks:"), strings.Join(s.CompletedTasks, ", "))
	}
	if p := orchestrator.ReportPath(s); p != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Report:"), p)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "%s [%s] %s: %s\n", red("Error:"), e.Kind, e.Role, e.Message)
	}
}
