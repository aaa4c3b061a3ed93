package roles

import "time"

// Section is one node of the report outline.
type Section struct {
	ID                  string    `json:"section_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	Mandatory           bool      `json:"mandatory,omitempty"`
	Subsections         []Section `json:"subsections,omitempty"`
	ContentRequirements []string  `json:"content_requirements,omitempty"`
}

// Structure is the payload of the structure synthesis role.
type Structure struct {
	ReportType      string    `json:"report_type"`
	Sections        []Section `json:"sections"`
	DynamicSections int       `json:"dynamic_sections"`
	Generated       bool      `json:"generated"`
}

// SourceResult is the outcome of fetching one web source.
type SourceResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content,omitempty"`
	CitationID  string    `json:"citation_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Collected is the payload of the data collector role.
type Collected struct {
	Topic   string         `json:"topic"`
	Scraped int            `json:"urls_scraped"`
	Failed  int            `json:"urls_failed"`
	Sources []SourceResult `json:"data"`
}

// APIResult is the outcome of one API request.
type APIResult struct {
	Name        string    `json:"name,omitempty"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code,omitempty"`
	Data        any       `json:"data,omitempty"`
	CitationID  string    `json:"citation_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// APIStatus values of APIData.
const (
	APIStatusCompleted = "completed"
	APIStatusSkipped   = "skipped"
)

// APIData is the payload of the API researcher role.
type APIData struct {
	Status  string      `json:"status"`
	Called  int         `json:"apis_called"`
	Failed  int         `json:"apis_failed"`
	Results []APIResult `json:"data"`
}

// Insight is one analyst finding.
type Insight struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Impact      string  `json:"impact,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Chart is a chart specification. Rendering is left to consumers.
type Chart struct {
	ID          string    `json:"viz_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
	XAxis       string    `json:"x_axis,omitempty"`
	YAxis       string    `json:"y_axis,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Analysis is the payload of the analyst role.
type Analysis struct {
	Summary  string    `json:"summary"`
	Insights []Insight `json:"insights"`
	Charts   []Chart   `json:"visualizations"`
	Sources  int       `json:"sources_analyzed"`
}

// SectionContent is generated prose for one section.
type SectionContent struct {
	SectionID string   `json:"section_id"`
	Title     string   `json:"section_title"`
	Content   string   `json:"content"`
	WordCount int      `json:"word_count"`
	KeyPoints []string `json:"key_points,omitempty"`
	Templated bool     `json:"templated,omitempty"`
}

// Content is the payload of the fallback content role.
type Content struct {
	Sections   []SectionContent `json:"section_contents"`
	TotalWords int              `json:"total_word_count"`
	Degraded   bool             `json:"degraded,omitempty"`
}

// Report is the payload of the writer role.
type Report struct {
	Markdown  string `json:"report"`
	Path      string `json:"report_path,omitempty"`
	Sections  int    `json:"sections_count"`
	Citations int    `json:"citations_count"`
	WordCount int    `json:"word_count"`
	Minimal   bool   `json:"minimal,omitempty"`
}
