package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const planningPrompt = `You are an expert research planner. Break the market research request below into specific, actionable sub-tasks.

Available agent types:
- data_collector: web scraping and content extraction from URLs
- api_researcher: calling external APIs for data
- analyst: analyzing data, identifying trends, creating visualizations
- writer: writing report sections and synthesizing findings
- cost_calculator: estimating token usage and costs

Guidelines:
1. Produce 3-8 sub-tasks.
2. Assign each task to the most appropriate agent type.
3. List dependencies between tasks by task_id.
4. Priority 1 executes first.

Respond with JSON only:
{"subtasks":[{"task_id":"task_1","agent_type":"data_collector","description":"...","dependencies":[],"priority":1}]}

User request: %s`

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Planner creates plans through a Generator and falls back to a fixed
// three-step plan when generation or parsing fails.
type Planner struct {
	gen    Generator
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Planner. A nil generator always yields the fallback plan.
func New(gen Generator, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{gen: gen, logger: logger, now: time.Now}
}

// CreatePlan returns a validated plan for request. It never fails: any
// generation, parse or validation problem yields the fallback plan.
func (p *Planner) CreatePlan(ctx context.Context, request string) *Plan {
	now := p.now()
	if p.gen == nil {
		return fallbackPlan(request, now)
	}

	raw, err := p.gen.Generate(ctx, fmt.Sprintf(planningPrompt, request))
	if err != nil {
		p.logger.Warn("plan generation failed, using fallback plan", "error", err)
		return fallbackPlan(request, now)
	}

	tasks, err := ParseSubTasks(raw)
	if err != nil {
		p.logger.Warn("plan parse failed, using fallback plan", "error", err)
		return fallbackPlan(request, now)
	}

	plan := &Plan{
		ID:        planID(now),
		Topic:     truncate(request, 100),
		SubTasks:  tasks,
		CreatedAt: now,
	}
	if _, err := Validate(plan); err != nil {
		p.logger.Warn("generated plan is invalid, using fallback plan", "error", err)
		return fallbackPlan(request, now)
	}
	return plan
}

type rawPlan struct {
	SubTasks []struct {
		ID          string         `json:"task_id"`
		Role        string         `json:"agent_type"`
		Description string         `json:"description"`
		DependsOn   []string       `json:"dependencies"`
		Priority    *int           `json:"priority"`
		Metadata    map[string]any `json:"metadata"`
	} `json:"subtasks"`
}

// ParseSubTasks extracts sub-tasks from model output. The outermost JSON
// object is located, repaired if malformed, and decoded. Missing ids,
// roles and priorities are filled with positional defaults.
func ParseSubTasks(raw string) ([]SubTask, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(obj), &rp); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if len(rp.SubTasks) == 0 {
		return nil, errors.New("plan has no subtasks")
	}

	tasks := make([]SubTask, 0, len(rp.SubTasks))
	for i, t := range rp.SubTasks {
		st := SubTask{
			ID:          t.ID,
			Role:        runstate.Role(t.Role),
			Description: t.Description,
			DependsOn:   t.DependsOn,
			Priority:    i + 1,
			Metadata:    t.Metadata,
		}
		if st.ID == "" {
			st.ID = fmt.Sprintf("task_%d", i+1)
		}
		if st.Role == "" {
			st.Role = runstate.RoleCollector
		}
		if st.DependsOn == nil {
			st.DependsOn = []string{}
		}
		if t.Priority != nil {
			st.Priority = *t.Priority
		}
		tasks = append(tasks, st)
	}
	return tasks, nil
}

// ExtractJSONObject returns the span from the first '{' to the last '}'
// of s, repaired into valid JSON.
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in model output")
	}
	obj := s[start : end+1]
	if json.Valid([]byte(obj)) {
		return obj, nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return "", fmt.Errorf("failed to repair JSON: %w", err)
	}
	return repaired, nil
}
