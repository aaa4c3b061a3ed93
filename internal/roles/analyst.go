package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/artifacts"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const analysisPrompt = `Analyze the research collected for a report.

REPORT TOPIC: %s
REQUIREMENTS:
%s

ASSIGNED TASKS:
%s

WEB SOURCES:
%s

API DATA:
%s

Return ONLY a JSON object:
{"summary": "2-3 sentence overview",
 "insights": [{"title": "...", "description": "...", "impact": "high|medium|low", "confidence": 0.0-1.0}],
 "visualizations": [{"type": "line_chart|bar_chart|pie_chart", "title": "...", "labels": ["..."], "values": [1.0],
   "x_axis": "...", "y_axis": "...", "description": "..."}]}
Provide %d visualizations. Use figures supported by the sources where possible.`

var chartTypes = map[string]bool{"line_chart": true, "bar_chart": true, "pie_chart": true}

// Analyst turns collected research into insights and chart specifications.
type Analyst struct {
	llm       *LLM
	artifacts ArtifactWriter
}

// NewAnalyst creates the analyst role.
func NewAnalyst(llm *LLM, w ArtifactWriter) *Analyst {
	return &Analyst{llm: llm, artifacts: w}
}

func (a *Analyst) Role() runstate.Role { return runstate.RoleAnalyst }

// Execute runs one model call over the prior research outputs.
func (a *Analyst) Execute(ctx context.Context, in agent.Input) (agent.Result, error) {
	req := in.Shared.Requirements
	charts := ChartCount(req)

	var web Collected
	in.Shared.Prior(runstate.RoleCollector, &web)
	var api APIData
	in.Shared.Prior(runstate.RoleAPIResearcher, &api)

	prompt := fmt.Sprintf(analysisPrompt, req.Topic, in.Shared.UserRequest, tasksContext(in.Tasks, 5),
		webDigest(web), payloadJSON(api.Results, 4000), charts)
	reply, err := a.llm.generate(ctx, a.Role(), in, prompt)
	if err != nil {
		return agent.Result{}, err
	}

	var out Analysis
	if err := decodeModelJSON(reply, &out); err != nil {
		return agent.Result{}, err
	}
	if out.Summary == "" && len(out.Insights) == 0 {
		return agent.Result{}, errors.New("analysis contained no findings")
	}
	out.Charts = cleanCharts(out.Charts, charts)
	out.Sources = web.Scraped + api.Called

	res, err := agent.Completed(a.Role(), out)
	if err != nil {
		return agent.Result{}, err
	}
	for _, c := range out.Charts {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			continue
		}
		if p := writeArtifact(a.artifacts, in, path.Join(artifacts.ChartsDir, c.ID+".json"), data); p != "" {
			res.Artifacts = append(res.Artifacts, p)
		}
	}
	res.Metrics = map[string]float64{
		"insights_count":       float64(len(out.Insights)),
		"visualizations_count": float64(len(out.Charts)),
	}
	return res, nil
}

// ChartCount is the number of charts requested for a report: none without
// analysis or visualizations, otherwise max(2, pages/10).
func ChartCount(req runstate.Requirements) int {
	if !req.IncludeAnalysis || !req.IncludeVisualizations {
		return 0
	}
	return max(2, req.PageCount/10)
}

// cleanCharts keeps well-formed charts up to limit and assigns ids.
func cleanCharts(in []Chart, limit int) []Chart {
	out := make([]Chart, 0, min(len(in), limit))
	for _, c := range in {
		if len(out) == limit {
			break
		}
		c.Type = strings.ToLower(strings.TrimSpace(c.Type))
		if !chartTypes[c.Type] {
			c.Type = "bar_chart"
		}
		if len(c.Labels) == 0 || len(c.Labels) != len(c.Values) {
			continue
		}
		c.ID = fmt.Sprintf("chart_%d", len(out)+1)
		out = append(out, c)
	}
	return out
}

func webDigest(c Collected) string {
	var b strings.Builder
	for _, s := range c.Sources {
		if s.Error != "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s (%s)\n%s\n\n", s.CitationID, s.Title, s.URL, truncate(s.Content, 1500))
	}
	if b.Len() == 0 {
		return "No web sources were collected."
	}
	return strings.TrimSpace(b.String())
}
