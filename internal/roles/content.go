package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const sectionPrompt = `Generate comprehensive, professional content for this report section.

REPORT TOPIC: %s
USER REQUIREMENTS:
%s

Report Context:
- Page Count Target: %d pages
- Complexity: %s
- Include Analysis: %t
- Include Visualizations: %t

SECTION TO GENERATE:
Title: %s
ID: %s
%s
%s
INSTRUCTIONS:
1. Write 250-400 words of substantial, professional content for this section.
2. Be specific with examples and details and keep a business tone.
3. Use clear paragraphs and no placeholder text.
4. If this is the executive summary, synthesize key findings across the report.

Return ONLY the section prose, no JSON and no metadata.`

var defaultSections = []Section{
	{ID: "executive_summary", Title: "Executive Summary"},
	{ID: "market_overview", Title: "Market Overview"},
	{ID: "key_findings", Title: "Key Findings"},
}

// FallbackContent writes prose for every section straight from the model.
// It is always staffed so a report never lacks content.
type FallbackContent struct {
	llm       *LLM
	artifacts ArtifactWriter
}

// NewFallbackContent creates the fallback content role.
func NewFallbackContent(llm *LLM, w ArtifactWriter) *FallbackContent {
	return &FallbackContent{llm: llm, artifacts: w}
}

func (f *FallbackContent) Role() runstate.Role { return runstate.RoleFallbackContent }

// Execute generates each section with one model call. A section whose
// call fails gets template text; the role fails only if every call fails.
func (f *FallbackContent) Execute(ctx context.Context, in agent.Input) (agent.Result, error) {
	sections := contentSections(in.Shared)
	research := researchContext(in.Shared)

	out := Content{Sections: make([]SectionContent, 0, len(sections))}
	var errs []error
	for _, s := range sections {
		text, err := f.llm.generate(ctx, f.Role(), in, f.prompt(in.Shared, s, research))
		if err == nil {
			text = unwrapContent(text)
		}
		if err != nil || text == "" {
			if err == nil {
				err = fmt.Errorf("empty content for %s", s.ID)
			}
			errs = append(errs, err)
			out.Sections = append(out.Sections, templateSection(in.Shared.Requirements, s))
			continue
		}
		out.Sections = append(out.Sections, newSectionContent(s, text, false))
	}
	if len(errs) == len(sections) {
		return agent.Result{}, errors.Join(errs...)
	}
	out.Degraded = len(errs) > 0
	return f.result(in, out)
}

// Degrade produces template text for every section.
func (f *FallbackContent) Degrade(_ context.Context, in agent.Input, _ error) (agent.Result, error) {
	return f.result(in, TemplateContent(in.Shared))
}

// TemplateContent is degraded content with template text for every section
// of the synthesized structure, or of the default outline without one. It
// needs no model and is never empty.
func TemplateContent(sh *agent.Shared) Content {
	sections := contentSections(sh)
	out := Content{Sections: make([]SectionContent, 0, len(sections)), Degraded: true}
	for _, s := range sections {
		sc := templateSection(sh.Requirements, s)
		out.Sections = append(out.Sections, sc)
		out.TotalWords += sc.WordCount
	}
	return out
}

func (f *FallbackContent) result(in agent.Input, out Content) (agent.Result, error) {
	out.TotalWords = 0
	for _, s := range out.Sections {
		out.TotalWords += s.WordCount
	}
	res, err := agent.Completed(f.Role(), out)
	if err != nil {
		return agent.Result{}, err
	}
	if data, err := json.MarshalIndent(out, "", "  "); err == nil {
		if p := writeArtifact(f.artifacts, in, "content/sections.json", data); p != "" {
			res.Artifacts = append(res.Artifacts, p)
		}
	}
	res.Metrics = map[string]float64{
		"sections_generated": float64(len(out.Sections)),
		"total_word_count":   float64(out.TotalWords),
	}
	return res, nil
}

func (f *FallbackContent) prompt(sh *agent.Shared, s Section, research string) string {
	req := sh.Requirements
	desc := ""
	if s.Description != "" {
		desc = "Description: " + s.Description
	}
	details := sh.UserRequest
	if details == "" {
		details = "General analysis requested"
	}
	return fmt.Sprintf(sectionPrompt, req.Topic, details, req.PageCount, req.Complexity,
		req.IncludeAnalysis, req.IncludeVisualizations, s.Title, s.ID, desc, research)
}

// contentSections lists the top-level sections that need prose. References
// are rendered from citations and are skipped.
func contentSections(sh *agent.Shared) []Section {
	var st Structure
	if !sh.Prior(runstate.RoleStructure, &st) || len(st.Sections) == 0 {
		return defaultSections
	}
	out := make([]Section, 0, len(st.Sections))
	for _, s := range st.Sections {
		if s.ID == "references" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func researchContext(sh *agent.Shared) string {
	var lines []string
	if _, ok := sh.Outputs[runstate.RoleCollector]; ok {
		lines = append(lines, "Available web research data exists.")
	}
	if _, ok := sh.Outputs[runstate.RoleAPIResearcher]; ok {
		lines = append(lines, "Available API data exists.")
	}
	if _, ok := sh.Outputs[runstate.RoleAnalyst]; ok {
		lines = append(lines, "Available analysis insights exist.")
	}
	return strings.Join(lines, "\n")
}

// unwrapContent strips a {"content": ...} wrapper some models add.
func unwrapContent(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return text
	}
	var wrapped struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Content != "" {
		return strings.TrimSpace(wrapped.Content)
	}
	return text
}

func newSectionContent(s Section, text string, templated bool) SectionContent {
	return SectionContent{
		SectionID: s.ID,
		Title:     s.Title,
		Content:   text,
		WordCount: len(strings.Fields(text)),
		KeyPoints: keyPoints(text, 3),
		Templated: templated,
	}
}

func keyPoints(text string, n int) []string {
	var out []string
	for _, sentence := range strings.Split(text, ". ") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !strings.HasSuffix(sentence, ".") {
			sentence += "."
		}
		out = append(out, sentence)
		if len(out) == n {
			break
		}
	}
	return out
}

// templateSection is deterministic text built from the requirements alone.
func templateSection(req runstate.Requirements, s Section) SectionContent {
	var b strings.Builder
	fmt.Fprintf(&b, "This section presents the %s of the report on %s.", strings.ToLower(s.Title), req.Topic)
	if s.Description != "" {
		fmt.Fprintf(&b, " It covers %s.", strings.TrimSuffix(lowerFirst(s.Description), "."))
	}
	for _, sub := range s.Subsections {
		fmt.Fprintf(&b, " %s: %s.", sub.Title, strings.TrimSuffix(sub.Description, "."))
	}
	if len(s.ContentRequirements) > 0 {
		fmt.Fprintf(&b, " Key elements include %s.", strings.ToLower(strings.Join(s.ContentRequirements, ", ")))
	}
	fmt.Fprintf(&b, " The discussion is scoped to a %d-page %s-complexity report.", req.PageCount, req.Complexity)
	return newSectionContent(s, b.String(), true)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
