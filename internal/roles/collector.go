package roles

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const (
	maxDiscoveredURLs = 5
	maxContentRunes   = 8000
	snippetRunes      = 200
)

const urlDiscoveryPrompt = `Given this research topic and specific data collection tasks, identify 3-5 specific, authoritative URLs that would contain relevant information.

Research Topic: %s

Specific Tasks:
%s

Prefer official sites, government data, reputable news, and industry reports that are publicly accessible.
Return ONLY a JSON array of URLs, for example ["https://example.com/article1", "https://example2.com/data"]`

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\]\)]+`)

// PageFetcher fetches a web page. *backend.Fetcher satisfies it.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string, params, headers map[string]string) (*backend.Page, error)
}

// Collector scrapes web sources for the topic.
type Collector struct {
	fetcher   PageFetcher
	llm       *LLM
	artifacts ArtifactWriter
}

// NewCollector creates the data collector role. llm is only used to
// discover URLs when the requirements list none and may be nil.
func NewCollector(f PageFetcher, llm *LLM, w ArtifactWriter) *Collector {
	return &Collector{fetcher: f, llm: llm, artifacts: w}
}

func (c *Collector) Role() runstate.Role { return runstate.RoleCollector }

// Execute fetches every source URL. A URL that cannot be fetched is
// recorded in the payload; it does not fail the role.
func (c *Collector) Execute(ctx context.Context, in agent.Input) (agent.Result, error) {
	req := in.Shared.Requirements
	urls := req.URLs
	if len(urls) == 0 {
		urls = c.discoverURLs(ctx, in)
	}

	out := Collected{Topic: req.Topic, Sources: make([]SourceResult, 0, len(urls))}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return agent.Result{}, err
		}
		sr := c.scrape(ctx, u)
		if sr.Error != "" {
			out.Failed++
		} else {
			out.Scraped++
			sr.CitationID = citationID(runstate.RoleCollector, out.Scraped)
			in.Shared.AddCitation(runstate.Citation{
				ID:          sr.CitationID,
				Title:       sr.Title,
				URL:         sr.URL,
				Source:      runstate.RoleCollector,
				Snippet:     truncate(sr.Content, snippetRunes),
				RetrievedAt: sr.RetrievedAt,
			})
		}
		out.Sources = append(out.Sources, sr)
	}

	res, err := agent.Completed(c.Role(), out)
	if err != nil {
		return agent.Result{}, err
	}
	if path := writeArtifact(c.artifacts, in, "research/web_research.txt", []byte(researchNotes(out))); path != "" {
		res.Artifacts = append(res.Artifacts, path)
	}
	res.Metrics = map[string]float64{
		"urls_scraped": float64(out.Scraped),
		"urls_failed":  float64(out.Failed),
	}
	return res, nil
}

func (c *Collector) scrape(ctx context.Context, rawURL string) SourceResult {
	sr := SourceResult{URL: rawURL, RetrievedAt: time.Now()}
	page, err := c.fetcher.Get(ctx, rawURL, nil, nil)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	title, content, err := ExtractContent(page.Body, rawURL)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Title = title
	sr.Content = truncate(content, maxContentRunes)
	sr.RetrievedAt = page.FetchedAt
	return sr
}

// discoverURLs asks the model for sources and falls back to keyword-based
// defaults.
func (c *Collector) discoverURLs(ctx context.Context, in agent.Input) []string {
	topic := in.Shared.Requirements.Topic
	if c.llm == nil {
		return FallbackURLs(topic)
	}
	reply, err := c.llm.generate(ctx, c.Role(), in, fmt.Sprintf(urlDiscoveryPrompt, topic, tasksContext(in.Tasks, 3)))
	if err != nil {
		return FallbackURLs(topic)
	}
	if urls := ParseURLs(reply); len(urls) > 0 {
		return urls
	}
	return FallbackURLs(topic)
}

// ParseURLs reads a JSON array of URLs from model output, or failing that
// any http(s) URLs in the text. At most five are returned.
func ParseURLs(reply string) []string {
	var list []any
	var urls []string
	if err := decodeModelJSON(reply, &list); err == nil {
		for _, v := range list {
			if s, ok := v.(string); ok && validURL(s) {
				urls = append(urls, s)
			}
		}
	}
	if len(urls) == 0 {
		for _, m := range urlPattern.FindAllString(reply, -1) {
			m = strings.TrimRight(m, ".,;:)]}")
			if validURL(m) {
				urls = append(urls, m)
			}
		}
	}
	if len(urls) > maxDiscoveredURLs {
		urls = urls[:maxDiscoveredURLs]
	}
	return urls
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var companyDomains = []string{"apple", "google", "microsoft", "amazon", "tesla", "meta", "netflix"}

// FallbackURLs picks up to three well-known sources by topic keywords.
func FallbackURLs(topic string) []string {
	t := strings.ToLower(topic)
	var urls []string
	for _, company := range companyDomains {
		if strings.Contains(t, company) {
			urls = append(urls, "https://investor."+company+".com")
			break
		}
	}
	if strings.Contains(t, "market") || strings.Contains(t, "industry") {
		urls = append(urls, "https://www.statista.com", "https://www.ibisworld.com")
	}
	if strings.Contains(t, "financial") || strings.Contains(t, "stock") {
		urls = append(urls, "https://finance.yahoo.com", "https://www.sec.gov")
	}
	if strings.Contains(t, "tech") {
		urls = append(urls, "https://techcrunch.com", "https://www.theverge.com")
	}
	if len(urls) == 0 {
		urls = []string{"https://www.reuters.com", "https://www.bloomberg.com", "https://www.wsj.com"}
	}
	if len(urls) > 3 {
		urls = urls[:3]
	}
	return urls
}

// ExtractContent returns the page title and readable text of an HTML
// document. Headings are prefixed with "## ".
func ExtractContent(body []byte, rawURL string) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if u, perr := url.Parse(rawURL); perr == nil {
			title = u.Host
		}
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var parts []string
	root.Find("p, h1, h2, h3, h4, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			parts = append(parts, "## "+text)
		default:
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		content = strings.Join(strings.Fields(root.Text()), " ")
	} else {
		content = strings.Join(parts, "\n")
	}
	return title, content, nil
}

func citationID(role runstate.Role, n int) string {
	return fmt.Sprintf("%s-%d", role, n)
}

func researchNotes(c Collected) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== WEB RESEARCH NOTES ===\nTopic: %s\nSources: %d\n\n", c.Topic, c.Scraped)
	for _, s := range c.Sources {
		if s.Error != "" {
			continue
		}
		fmt.Fprintf(&b, "--- Source [%s] ---\nTitle: %s\nURL: %s\nRetrieved: %s\n\n%s\n\n",
			s.CitationID, s.Title, s.URL, s.RetrievedAt.Format(time.RFC3339), s.Content)
	}
	return b.String()
}
