package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/artifacts"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Report types detected from the topic and requirements text.
const (
	ReportMarket      = "market_research"
	ReportTechnology  = "technology_analysis"
	ReportFinancial   = "financial_analysis"
	ReportTrend       = "trend_analysis"
	ReportComparative = "comparative_analysis"
	ReportGeneral     = "general_research"
)

var reportTypeKeywords = []struct {
	kind     string
	keywords []string
}{
	{ReportMarket, []string{"market", "industry", "market size", "market share", "competitive"}},
	{ReportTechnology, []string{"technology", "innovation", "technical", "architecture", "implementation"}},
	{ReportFinancial, []string{"financial", "investment", "revenue", "profit", "valuation", "stock"}},
	{ReportTrend, []string{"trend", "forecast", "prediction", "future", "outlook"}},
	{ReportComparative, []string{"compare", "comparison", "versus", " vs ", "competitive"}},
}

const structurePrompt = `Design the body sections of a research report.

REPORT TOPIC: %s
REPORT TYPE: %s
REQUIREMENTS:
%s

Target length: %d pages. Complexity: %s. Include analysis: %t. Include visualizations: %t.

Do not include Executive Summary, Introduction, Methodology or References; they are added automatically.
Return ONLY a JSON array of 3-8 sections:
[{"section_id": "snake_case_id", "title": "Title", "description": "What it covers",
  "subsections": [{"section_id": "...", "title": "...", "description": "..."}],
  "content_requirements": ["..."]}]`

// Synthesizer builds the report outline.
type Synthesizer struct {
	llm       *LLM
	artifacts ArtifactWriter
}

// NewSynthesizer creates the structure role. A nil llm always uses the
// rule-based outline.
func NewSynthesizer(llm *LLM, w ArtifactWriter) *Synthesizer {
	return &Synthesizer{llm: llm, artifacts: w}
}

func (s *Synthesizer) Role() runstate.Role { return runstate.RoleStructure }

// Execute asks the model for the body sections and frames them with the
// mandatory sections.
func (s *Synthesizer) Execute(ctx context.Context, in agent.Input) (agent.Result, error) {
	req := in.Shared.Requirements
	kind := DetectReportType(req.Topic, in.Shared.UserRequest)
	if s.llm == nil {
		return s.result(in, RuleBasedStructure(req, in.Shared.UserRequest))
	}

	prompt := fmt.Sprintf(structurePrompt, req.Topic, kind, in.Shared.UserRequest,
		req.PageCount, req.Complexity, req.IncludeAnalysis, req.IncludeVisualizations)
	reply, err := s.llm.generate(ctx, s.Role(), in, prompt)
	if err != nil {
		return agent.Result{}, err
	}
	var body []Section
	if err := decodeModelJSON(reply, &body); err != nil {
		return agent.Result{}, err
	}
	body = cleanSections(body)
	if len(body) == 0 {
		return agent.Result{}, errors.New("model returned no report sections")
	}
	return s.result(in, frame(kind, body, true))
}

// Degrade returns the rule-based outline.
func (s *Synthesizer) Degrade(_ context.Context, in agent.Input, _ error) (agent.Result, error) {
	return s.result(in, RuleBasedStructure(in.Shared.Requirements, in.Shared.UserRequest))
}

func (s *Synthesizer) result(in agent.Input, st Structure) (agent.Result, error) {
	res, err := agent.Completed(s.Role(), st)
	if err != nil {
		return agent.Result{}, err
	}
	if data, err := json.MarshalIndent(st, "", "  "); err == nil {
		if path := writeArtifact(s.artifacts, in, artifacts.StructureFile, data); path != "" {
			res.Artifacts = append(res.Artifacts, path)
		}
	}
	res.Metrics = map[string]float64{
		"total_sections":   float64(len(st.Sections)),
		"dynamic_sections": float64(st.DynamicSections),
	}
	return res, nil
}

// DetectReportType classifies a report by keywords in the topic and
// requirements text.
func DetectReportType(topic, requirements string) string {
	combined := strings.ToLower(topic + " " + requirements)
	for _, rt := range reportTypeKeywords {
		for _, kw := range rt.keywords {
			if strings.Contains(combined, kw) {
				return rt.kind
			}
		}
	}
	return ReportGeneral
}

// RuleBasedStructure builds the outline without a model: type-specific body
// sections, an analysis section when requested, and conclusions.
func RuleBasedStructure(req runstate.Requirements, requirements string) Structure {
	kind := DetectReportType(req.Topic, requirements)
	body := typeSections(kind, req.PageCount)
	if req.IncludeAnalysis {
		body = append(body, analysisSection(req.IncludeVisualizations))
	}
	body = append(body, conclusionsSection(kind))
	return frame(kind, body, false)
}

// frame orders executive summary, introduction, body, methodology, and
// references.
func frame(kind string, body []Section, generated bool) Structure {
	sections := make([]Section, 0, len(body)+4)
	sections = append(sections,
		Section{ID: "executive_summary", Title: "Executive Summary", Description: "High-level overview of key findings and recommendations", Mandatory: true},
		Section{ID: "introduction", Title: "Introduction", Description: "Background, context, and objectives of the research", Mandatory: true},
	)
	sections = append(sections, body...)
	sections = append(sections,
		Section{ID: "methodology", Title: "Methodology", Description: "Research approach, data sources, and analysis methods", Mandatory: true},
		Section{ID: "references", Title: "References", Description: "Citations and sources used in the research", Mandatory: true},
	)
	return Structure{ReportType: kind, Sections: sections, DynamicSections: len(body), Generated: generated}
}

var mandatoryIDs = map[string]bool{
	"executive_summary": true, "introduction": true, "methodology": true, "references": true,
}

// cleanSections drops untitled and mandatory entries and fills missing ids.
func cleanSections(in []Section) []Section {
	out := make([]Section, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		if s.ID == "" {
			s.ID = slug(s.Title)
		}
		if mandatoryIDs[s.ID] || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		s.Mandatory = false
		out = append(out, s)
	}
	return out
}

func slug(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func sub(id, title, desc string) Section {
	return Section{ID: id, Title: title, Description: desc}
}

func typeSections(kind string, pages int) []Section {
	switch kind {
	case ReportMarket:
		out := []Section{
			{ID: "market_overview", Title: "Market Overview", Description: "Current state of the market, size, and key characteristics",
				Subsections: []Section{
					sub("market_definition", "Market Definition and Scope", "Define the market boundaries and segments"),
					sub("market_size", "Market Size and Growth", "Current market size and historical growth rates"),
				},
				ContentRequirements: []string{"Market size data", "Growth statistics", "Market segments"}},
			{ID: "competitive_landscape", Title: "Competitive Landscape", Description: "Analysis of key players and competitive dynamics",
				Subsections: []Section{
					sub("key_players", "Key Market Players", "Overview of major companies and their market positions"),
					sub("market_share", "Market Share Analysis", "Distribution of market share among competitors"),
				},
				ContentRequirements: []string{"Competitor profiles", "Market share data", "Competitive advantages"}},
			{ID: "market_trends", Title: "Market Trends and Drivers", Description: "Key trends, drivers, and factors influencing the market",
				Subsections: []Section{
					sub("growth_drivers", "Growth Drivers", "Factors driving market growth"),
					sub("challenges", "Market Challenges", "Obstacles and challenges facing the market"),
				},
				ContentRequirements: []string{"Trend analysis", "Driver identification", "Challenge assessment"}},
		}
		if pages >= 20 {
			out = append(out, Section{ID: "market_forecast", Title: "Market Forecast", Description: "Future projections and growth outlook",
				ContentRequirements: []string{"Growth projections", "Future trends", "Scenario analysis"}})
		}
		return out
	case ReportTechnology:
		return []Section{
			{ID: "technology_overview", Title: "Technology Overview", Description: "Current state and evolution of the technology",
				Subsections: []Section{
					sub("tech_fundamentals", "Technical Fundamentals", "Core concepts and architecture"),
					sub("tech_evolution", "Evolution and Maturity", "Historical development and current maturity level"),
				}},
			sub("use_cases", "Use Cases and Applications", "Practical applications and implementation examples"),
			sub("tech_landscape", "Technology Landscape", "Ecosystem, vendors, and solution providers"),
		}
	case ReportFinancial:
		return []Section{
			{ID: "financial_overview", Title: "Financial Overview", Description: "Summary of financial performance and metrics",
				Subsections: []Section{
					sub("financial_performance", "Financial Performance", "Revenue, profitability, and key metrics"),
					sub("valuation", "Valuation Analysis", "Valuation metrics and comparisons"),
				}},
			sub("financial_trends", "Financial Trends", "Historical trends and future outlook"),
		}
	case ReportTrend:
		return []Section{
			sub("current_trends", "Current Trends", "Identification and analysis of current trends"),
			sub("emerging_trends", "Emerging Trends", "Nascent trends and future directions"),
			sub("trend_implications", "Implications and Impact", "Impact of trends on stakeholders"),
		}
	case ReportComparative:
		return []Section{
			sub("comparison_criteria", "Comparison Criteria", "Factors and metrics used for comparison"),
			{ID: "comparative_analysis", Title: "Comparative Analysis", Description: "Side-by-side comparison of subjects",
				Subsections: []Section{
					sub("strengths_weaknesses", "Strengths and Weaknesses", "Comparative strengths and weaknesses"),
					sub("performance_comparison", "Performance Comparison", "Quantitative performance metrics"),
				}},
		}
	default:
		return []Section{
			sub("background", "Background and Context", "Historical background and current context"),
			sub("key_findings", "Key Findings", "Main research findings and discoveries"),
			sub("discussion", "Discussion", "Interpretation and implications of findings"),
		}
	}
}

func analysisSection(withCharts bool) Section {
	subs := []Section{
		sub("data_analysis", "Data Analysis", "Statistical and quantitative analysis"),
		sub("insights", "Key Insights", "Critical insights derived from analysis"),
	}
	if withCharts {
		subs = append(subs, sub("visualizations", "Data Visualizations", "Charts, graphs, and visual representations"))
	}
	return Section{ID: "analysis", Title: "Analysis", Description: "Detailed analysis of collected data",
		Subsections: subs, ContentRequirements: []string{"Statistical analysis", "Insights", "Data patterns"}}
}

func conclusionsSection(kind string) Section {
	s := Section{ID: "conclusions", Description: "Final conclusions and recommendations",
		ContentRequirements: []string{"Summary", "Recommendations", "Action items"}}
	if kind == ReportMarket || kind == ReportFinancial {
		s.Title = "Conclusions and Recommendations"
		s.Subsections = []Section{
			sub("key_conclusions", "Key Conclusions", "Main conclusions from the research"),
			sub("recommendations", "Strategic Recommendations", "Actionable recommendations for stakeholders"),
		}
	} else {
		s.Title = "Conclusions"
		s.Subsections = []Section{
			sub("summary_findings", "Summary of Findings", "Summary of key research outcomes"),
			sub("future_directions", "Future Directions", "Suggestions for future research or action"),
		}
	}
	return s
}
