package roles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func sectionIDs(sections []Section) []string {
	ids := make([]string, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestDetectReportType(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Electric vehicle market", ReportMarket},
		{"Cloud technology adoption", ReportTechnology},
		{"Tesla stock valuation", ReportFinancial},
		{"Future of remote work", ReportTrend},
		{"AWS versus Azure", ReportComparative},
		{"Medieval history", ReportGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectReportType(tt.topic, ""))
		})
	}
}

func TestRuleBasedStructure(t *testing.T) {
	t.Run("long market report", func(t *testing.T) {
		req := runstate.DefaultRequirements("EV market")
		req.PageCount = 20
		st := RuleBasedStructure(req, "")

		assert.Equal(t, ReportMarket, st.ReportType)
		assert.False(t, st.Generated)
		assert.Equal(t, []string{
			"executive_summary", "introduction",
			"market_overview", "competitive_landscape", "market_trends", "market_forecast",
			"analysis", "conclusions",
			"methodology", "references",
		}, sectionIDs(st.Sections))
		assert.Equal(t, 6, st.DynamicSections)

		analysis := st.Sections[6]
		assert.Equal(t, []string{"data_analysis", "insights", "visualizations"}, sectionIDs(analysis.Subsections))
		assert.Equal(t, "Conclusions and Recommendations", st.Sections[7].Title)
	})

	t.Run("short report without analysis", func(t *testing.T) {
		req := runstate.DefaultRequirements("EV market")
		req.IncludeAnalysis = false
		st := RuleBasedStructure(req, "")

		assert.NotContains(t, sectionIDs(st.Sections), "market_forecast")
		assert.NotContains(t, sectionIDs(st.Sections), "analysis")
		assert.Len(t, st.Sections, 8)
	})

	t.Run("general report conclusions", func(t *testing.T) {
		st := RuleBasedStructure(runstate.DefaultRequirements("Medieval history"), "")
		last := st.Sections[len(st.Sections)-3]
		assert.Equal(t, "Conclusions", last.Title)
		assert.True(t, st.Sections[0].Mandatory)
		assert.True(t, st.Sections[len(st.Sections)-1].Mandatory)
	})
}

func TestSynthesizerUsesModelSections(t *testing.T) {
	b := replyWith("Here is the outline:\n```json\n" + `[
		{"section_id": "introduction", "title": "Intro"},
		{"title": "Market Size & Growth", "description": "Sizing"},
		{"section_id": "competitors", "title": "Competitors"},
		{"section_id": "competitors", "title": "Duplicate"},
		{"title": "  "}
	]` + "\n```")
	store := newMemArtifacts()
	s := NewSynthesizer(testLLM(b), store)
	in := newInput(t, runstate.DefaultRequirements("Electric vehicle market"), nil)

	res, err := s.Execute(context.Background(), in)
	require.NoError(t, err)

	var st Structure
	require.NoError(t, json.Unmarshal(res.Payload, &st))
	assert.True(t, st.Generated)
	assert.Equal(t, ReportMarket, st.ReportType)
	assert.Equal(t, []string{
		"executive_summary", "introduction", "market_size_growth", "competitors", "methodology", "references",
	}, sectionIDs(st.Sections))
	assert.Equal(t, 2, st.DynamicSections)
	assert.Equal(t, 6.0, res.Metrics["total_sections"])
	assert.Equal(t, []string{testSession + "/structure.json"}, res.Artifacts)

	_, ok := store.file("structure.json")
	assert.True(t, ok)
	require.Equal(t, 1, b.calls())
	assert.Contains(t, b.prompts[0], "Electric vehicle market")
}

func TestSynthesizerWithoutModel(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)

	res, err := s.Execute(context.Background(), in)
	require.NoError(t, err)
	var st Structure
	require.NoError(t, json.Unmarshal(res.Payload, &st))
	assert.False(t, st.Generated)
	assert.Empty(t, res.Artifacts)
}

func TestSynthesizerDegradesOnModelFailure(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
	}{
		{"model error", failingBackend()},
		{"no sections", replyWith(`[{"section_id": "references", "title": "References"}]`)},
		{"not JSON", replyWith("I could not produce an outline.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInput(t, runstate.DefaultRequirements("EV market"), nil)
			out := runRole(t, NewSynthesizer(testLLM(tt.backend), nil), in)

			assert.True(t, out.Result.Degraded)
			assert.False(t, out.Failed())
			require.NotNil(t, out.Error)
			assert.Equal(t, runstate.ErrorKindRole, out.Error.Kind)

			var st Structure
			require.NoError(t, json.Unmarshal(out.Result.Payload, &st))
			assert.False(t, st.Generated)
			assert.Equal(t, "executive_summary", st.Sections[0].ID)
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "market_size_growth", slug("Market Size & Growth"))
	assert.Equal(t, "ai_in_2030", slug("AI in 2030!"))
}
