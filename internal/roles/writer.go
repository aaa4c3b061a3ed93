package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/artifacts"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Writer assembles the final Markdown report from whatever role outputs
// exist. Missing optional outputs are treated as empty.
type Writer struct {
	artifacts ArtifactWriter
	now       func() time.Time
}

// NewWriter creates the final synthesis role.
func NewWriter(w ArtifactWriter) *Writer {
	return &Writer{artifacts: w, now: time.Now}
}

func (w *Writer) Role() runstate.Role { return runstate.RoleWriter }

// Execute renders the full report and stores it as an artifact. A failed
// artifact write fails the role.
func (w *Writer) Execute(_ context.Context, in agent.Input) (agent.Result, error) {
	r := newReportBuilder(in.Shared, w.now())
	report := r.full()
	if w.artifacts != nil {
		p, err := w.artifacts.Write(in.Shared.SessionID, artifacts.ReportFile, []byte(report.Markdown))
		if err != nil {
			return agent.Result{}, fmt.Errorf("failed to store report: %w", err)
		}
		report.Path = p
	}
	return w.result(report)
}

// Degrade renders a minimal report from the structure and fallback content
// without touching the artifact store.
func (w *Writer) Degrade(_ context.Context, in agent.Input, _ error) (agent.Result, error) {
	r := newReportBuilder(in.Shared, w.now())
	return w.result(r.minimal())
}

func (w *Writer) result(report Report) (agent.Result, error) {
	res, err := agent.Completed(w.Role(), report)
	if err != nil {
		return agent.Result{}, err
	}
	if report.Path != "" {
		res.Artifacts = []string{report.Path}
	}
	res.Metrics = map[string]float64{
		"sections_count":  float64(report.Sections),
		"citations_count": float64(report.Citations),
		"word_count":      float64(report.WordCount),
	}
	return res, nil
}

type reportBuilder struct {
	sh        *agent.Shared
	at        time.Time
	sections  []Section
	content   map[string]SectionContent
	web       Collected
	api       APIData
	analysis  Analysis
	hasAPI    bool
	hasAnal   bool
	citeIndex map[string]int
}

func newReportBuilder(sh *agent.Shared, at time.Time) *reportBuilder {
	r := &reportBuilder{sh: sh, at: at, content: map[string]SectionContent{}, citeIndex: map[string]int{}}

	var st Structure
	if sh.Prior(runstate.RoleStructure, &st) && len(st.Sections) > 0 {
		r.sections = st.Sections
	} else {
		r.sections = RuleBasedStructure(sh.Requirements, sh.UserRequest).Sections
	}
	var c Content
	if sh.Prior(runstate.RoleFallbackContent, &c) {
		for _, s := range c.Sections {
			r.content[s.SectionID] = s
		}
	}
	sh.Prior(runstate.RoleCollector, &r.web)
	r.hasAPI = sh.Prior(runstate.RoleAPIResearcher, &r.api)
	r.hasAnal = sh.Prior(runstate.RoleAnalyst, &r.analysis)
	for i, c := range sh.Citations {
		if c.ID != "" {
			r.citeIndex[c.ID] = i + 1
		}
	}
	return r
}

func (r *reportBuilder) full() Report {
	return r.render(false)
}

func (r *reportBuilder) minimal() Report {
	return r.render(true)
}

func (r *reportBuilder) render(minimal bool) Report {
	var b strings.Builder
	topic := r.sh.Requirements.Topic
	fmt.Fprintf(&b, "# %s\n\n", reportTitle(topic))
	fmt.Fprintf(&b, "_Generated: %s | Session: %s_\n\n---\n\n", r.at.Format("January 2, 2006"), r.sh.SessionID)

	count := 0
	for _, s := range r.sections {
		if s.ID == "references" {
			continue
		}
		count++
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, r.sectionBody(s))
		if minimal {
			continue
		}
		switch s.ID {
		case "analysis":
			r.writeAnalysis(&b)
		case "methodology":
			r.writeSources(&b)
		}
	}
	if !minimal && r.hasAnal && !r.hasSection("analysis") {
		count++
		b.WriteString("## Analysis\n\n")
		r.writeAnalysis(&b)
	}

	count++
	r.writeReferences(&b)

	md := strings.TrimRight(b.String(), "\n") + "\n"
	return Report{
		Markdown:  md,
		Sections:  count,
		Citations: len(r.sh.Citations),
		WordCount: len(strings.Fields(md)),
		Minimal:   minimal,
	}
}

func (r *reportBuilder) hasSection(id string) bool {
	for _, s := range r.sections {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (r *reportBuilder) sectionBody(s Section) string {
	if c, ok := r.content[s.ID]; ok && strings.TrimSpace(c.Content) != "" {
		return strings.TrimSpace(c.Content)
	}
	return templateSection(r.sh.Requirements, s).Content
}

func (r *reportBuilder) writeAnalysis(b *strings.Builder) {
	if !r.hasAnal {
		return
	}
	if r.analysis.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", r.analysis.Summary)
	}
	if len(r.analysis.Insights) > 0 {
		b.WriteString("### Key Insights\n\n")
		for i, in := range r.analysis.Insights {
			fmt.Fprintf(b, "%d. **%s**: %s", i+1, in.Title, in.Description)
			if in.Impact != "" {
				fmt.Fprintf(b, " _(impact: %s)_", in.Impact)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(r.analysis.Charts) > 0 {
		b.WriteString("### Data Visualizations\n\n")
		for i, c := range r.analysis.Charts {
			writeChartTable(b, i+1, c)
		}
	}
}

func writeChartTable(b *strings.Builder, n int, c Chart) {
	fmt.Fprintf(b, "**Figure %d: %s**\n\n", n, c.Title)
	x, y := c.XAxis, c.YAxis
	if x == "" {
		x = "Label"
	}
	if y == "" {
		y = "Value"
	}
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", x, y)
	for i := range c.Labels {
		fmt.Fprintf(b, "| %s | %s |\n", c.Labels[i], strconv.FormatFloat(c.Values[i], 'f', -1, 64))
	}
	b.WriteString("\n")
	if c.Description != "" {
		fmt.Fprintf(b, "_%s_\n\n", c.Description)
	}
}

func (r *reportBuilder) writeSources(b *strings.Builder) {
	web := 0
	for _, s := range r.web.Sources {
		if s.Error == "" {
			web++
		}
	}
	fmt.Fprintf(b, "Sources consulted: %d web page(s)", web)
	if r.hasAPI && r.api.Status == APIStatusCompleted {
		fmt.Fprintf(b, ", %d API endpoint(s)", r.api.Called)
	}
	b.WriteString(".\n\n")
	for _, s := range r.web.Sources {
		if s.Error != "" {
			continue
		}
		fmt.Fprintf(b, "- %s%s\n", s.Title, r.cite(s.CitationID))
	}
	if web > 0 {
		b.WriteString("\n")
	}
}

func (r *reportBuilder) cite(id string) string {
	if n, ok := r.citeIndex[id]; ok {
		return fmt.Sprintf(" [%d]", n)
	}
	return ""
}

func (r *reportBuilder) writeReferences(b *strings.Builder) {
	b.WriteString("## References\n\n")
	if len(r.sh.Citations) == 0 {
		b.WriteString("No citations available.\n")
		return
	}
	for i, c := range r.sh.Citations {
		title := c.Title
		if title == "" {
			title = string(c.Source)
		}
		fmt.Fprintf(b, "[%d] %s", i+1, title)
		if c.URL != "" {
			fmt.Fprintf(b, " - %s", c.URL)
		}
		if !c.RetrievedAt.IsZero() {
			fmt.Fprintf(b, " (Retrieved: %s)", c.RetrievedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
}

func reportTitle(topic string) string {
	if topic == "" {
		return "Market Research Report"
	}
	return topic + ": Market Research Report"
}
