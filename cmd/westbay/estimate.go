package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/decision"
	"github.com/vikasvdk5/WestBay/internal/planner"
)

func newEstimateCmd(opts *globalOptions) *cobra.Command {
	var reqs requirementsFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate staffing and cost without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			req, request, err := reqs.resolve(cmd)
			if err != nil {
				return err
			}

			staffing := decision.NewEngine(logger).Analyze(decision.InputFromRequirements(req, request))
			estimate := cost.NewCalculator(cfg.Prices()).Estimate(req)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"requirements": req,
					"staffing":     staffing,
					"estimate":     estimate,
				})
			}
			fmt.Fprintf(out, "%s %s\n", bold("Topic:"), req.Topic)
			printDecision(out, staffing)
			printEstimate(out, estimate)
			return nil
		},
	}
	reqs.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <request>",
		Short: "Show the research plan the lead researcher would follow",
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

			p, err := a.planner()
			if err != nil {
				return err
			}
			plan := p.CreatePlan(cmd.Context(), args[0])
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			source := "model"
			if plan.Fallback {
				source = "fallback"
			}
			fmt.Fprintf(out, "%s %s (%s plan, %d tasks)\n", bold("Plan:"), plan.Topic, source, len(plan.SubTasks))
			for _, t := range plan.SubTasks {
				deps := ""
				if len(t.DependsOn) > 0 {
					deps = faint(fmt.Sprintf(" after %v", t.DependsOn))
				}
				fmt.Fprintf(out, "  [%s] %-20s %s%s\n", t.ID, t.Role, t.Description, deps)
			}
			est := planner.EstimateCost(plan, a.calc.Prices())
			fmt.Fprintf(out, "%s %d tokens, USD %.4f (range %.4f-%.4f)\n", bold("Plan cost:"), est.TotalTokens, est.TotalCost, est.MinCost, est.MaxCost)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
