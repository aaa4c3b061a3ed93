package roles

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const sectionProse = "The EV market keeps expanding. Battery prices continue to fall. Charging networks are growing. Policy support remains strong."

func TestFallbackContentGeneratesEverySection(t *testing.T) {
	req := runstate.DefaultRequirements("EV market")
	structure := RuleBasedStructure(req, "")
	b := &stubBackend{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "ID: methodology") {
			return "", errors.New("rate limited")
		}
		return `{"content": "` + sectionProse + `"}`, nil
	}}
	store := newMemArtifacts()
	in := newInput(t, req, priorOutputs{runstate.RoleStructure: structure})

	res, err := NewFallbackContent(testLLM(b), store).Execute(context.Background(), in)
	require.NoError(t, err)

	var c Content
	require.NoError(t, json.Unmarshal(res.Payload, &c))
	assert.True(t, c.Degraded)
	require.Len(t, c.Sections, len(structure.Sections)-1)
	assert.Equal(t, len(structure.Sections)-1, b.calls())

	total := 0
	for _, s := range c.Sections {
		assert.NotEqual(t, "references", s.SectionID)
		assert.NotEmpty(t, s.Content)
		total += s.WordCount
		if s.SectionID == "methodology" {
			assert.True(t, s.Templated)
			assert.Contains(t, s.Content, "EV market")
			continue
		}
		assert.False(t, s.Templated)
		assert.Equal(t, sectionProse, s.Content)
		assert.Equal(t, []string{
			"The EV market keeps expanding.",
			"Battery prices continue to fall.",
			"Charging networks are growing.",
		}, s.KeyPoints)
	}
	assert.Equal(t, total, c.TotalWords)
	assert.Equal(t, float64(len(c.Sections)), res.Metrics["sections_generated"])
	assert.Equal(t, []string{testSession + "/content/sections.json"}, res.Artifacts)
}

func TestFallbackContentDefaultSections(t *testing.T) {
	b := replyWith(sectionProse)
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)

	res, err := NewFallbackContent(testLLM(b), nil).Execute(context.Background(), in)
	require.NoError(t, err)

	var c Content
	require.NoError(t, json.Unmarshal(res.Payload, &c))
	assert.False(t, c.Degraded)
	ids := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		ids = append(ids, s.SectionID)
	}
	assert.Equal(t, []string{"executive_summary", "market_overview", "key_findings"}, ids)
}

func TestFallbackContentDegradesWhenEveryCallFails(t *testing.T) {
	req := runstate.DefaultRequirements("EV market")
	in := newInput(t, req, priorOutputs{runstate.RoleStructure: RuleBasedStructure(req, "")})

	out := runRole(t, NewFallbackContent(testLLM(failingBackend()), nil), in)

	assert.True(t, out.Result.Degraded)
	assert.True(t, out.Complete)
	require.NotNil(t, out.Error)
	assert.Contains(t, out.Error.Message, "model unavailable")

	var c Content
	require.NoError(t, json.Unmarshal(out.Result.Payload, &c))
	assert.True(t, c.Degraded)
	for _, s := range c.Sections {
		assert.True(t, s.Templated, s.SectionID)
	}
}

func TestTemplateSectionIsDeterministic(t *testing.T) {
	req := runstate.DefaultRequirements("EV market")
	s := Section{ID: "market_overview", Title: "Market Overview", Description: "Current state of the market.",
		Subsections:         []Section{sub("market_size", "Market Size", "Current size")},
		ContentRequirements: []string{"Market size data", "Growth statistics"}}

	a := templateSection(req, s)
	b := templateSection(req, s)
	assert.Equal(t, a, b)
	assert.Equal(t, "This section presents the market overview of the report on EV market. "+
		"It covers current state of the market. Market Size: Current size. "+
		"Key elements include market size data, growth statistics. "+
		"The discussion is scoped to a 10-page medium-complexity report.", a.Content)
	assert.True(t, a.Templated)
}

func TestTemplateContentWithoutStructure(t *testing.T) {
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)

	c := TemplateContent(in.Shared)
	assert.True(t, c.Degraded)
	require.Len(t, c.Sections, len(defaultSections))
	total := 0
	for _, s := range c.Sections {
		assert.True(t, s.Templated, s.SectionID)
		assert.Contains(t, s.Content, "EV market")
		total += s.WordCount
	}
	assert.Equal(t, total, c.TotalWords)
	assert.Positive(t, c.TotalWords)
}

func TestUnwrapContent(t *testing.T) {
	assert.Equal(t, "Hello", unwrapContent(`{"content": " Hello "}`))
	assert.Equal(t, "plain text", unwrapContent("  plain text "))
	assert.Equal(t, `{"other": 1}`, unwrapContent(`{"other": 1}`))
}
