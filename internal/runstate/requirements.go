package runstate

const (
	DefaultPageCount   = 10
	DefaultSourceCount = 4
	MaxPageCount       = 101
	MaxSourceCount     = 31
)

// APIRequest describes one external JSON API call for the api researcher.
type APIRequest struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Requirements are the user-supplied report parameters.
type Requirements struct {
	Topic                 string       `json:"topic" yaml:"topic"`
	PageCount             int          `json:"page_count" yaml:"page_count"`
	SourceCount           int          `json:"source_count" yaml:"source_count"`
	Complexity            Complexity   `json:"complexity" yaml:"complexity"`
	IncludeAnalysis       bool         `json:"include_analysis" yaml:"include_analysis"`
	IncludeVisualizations bool         `json:"include_visualizations" yaml:"include_visualizations"`
	URLs                  []string     `json:"urls,omitempty" yaml:"urls,omitempty"`
	APIRequests           []APIRequest `json:"api_requests,omitempty" yaml:"api_requests,omitempty"`
}

// DefaultRequirements returns the defaults applied to new submissions.
func DefaultRequirements(topic string) Requirements {
	return Requirements{
		Topic:                 topic,
		PageCount:             DefaultPageCount,
		SourceCount:           DefaultSourceCount,
		Complexity:            ComplexityMedium,
		IncludeAnalysis:       true,
		IncludeVisualizations: true,
	}
}

// Normalize clamps counts into range and defaults unknown complexity.
// Out-of-range values are adjusted rather than rejected.
func (r Requirements) Normalize() Requirements {
	switch {
	case r.PageCount <= 0:
		r.PageCount = DefaultPageCount
	case r.PageCount > MaxPageCount:
		r.PageCount = MaxPageCount
	}
	switch {
	case r.SourceCount < 0:
		r.SourceCount = 0
	case r.SourceCount > MaxSourceCount:
		r.SourceCount = MaxSourceCount
	}
	r.Complexity = ParseComplexity(string(r.Complexity))
	return r
}
