package roles

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// JSONFetcher fetches and decodes a JSON document. *backend.Fetcher
// satisfies it.
type JSONFetcher interface {
	GetJSON(ctx context.Context, rawURL string, params, headers map[string]string) (any, *backend.Page, error)
}

// APIResearcher queries the API endpoints listed in the requirements.
type APIResearcher struct {
	fetcher   JSONFetcher
	artifacts ArtifactWriter
}

// NewAPIResearcher creates the API researcher role.
func NewAPIResearcher(f JSONFetcher, w ArtifactWriter) *APIResearcher {
	return &APIResearcher{fetcher: f, artifacts: w}
}

func (a *APIResearcher) Role() runstate.Role { return runstate.RoleAPIResearcher }

// Execute calls each API request. With no requests configured the payload
// status is skipped and the role still completes.
func (a *APIResearcher) Execute(ctx context.Context, in agent.Input) (agent.Result, error) {
	requests := in.Shared.Requirements.APIRequests
	if len(requests) == 0 {
		return agent.Completed(a.Role(), APIData{Status: APIStatusSkipped, Results: []APIResult{}})
	}

	out := APIData{Status: APIStatusCompleted, Results: make([]APIResult, 0, len(requests))}
	for _, r := range requests {
		if err := ctx.Err(); err != nil {
			return agent.Result{}, err
		}
		ar := a.call(ctx, r)
		if ar.Error != "" {
			out.Failed++
		} else {
			out.Called++
			ar.CitationID = citationID(runstate.RoleAPIResearcher, out.Called)
			in.Shared.AddCitation(runstate.Citation{
				ID:          ar.CitationID,
				Title:       "API: " + apiName(r),
				URL:         r.URL,
				Source:      runstate.RoleAPIResearcher,
				Snippet:     payloadJSON(ar.Data, snippetRunes),
				RetrievedAt: ar.RetrievedAt,
			})
		}
		out.Results = append(out.Results, ar)
	}

	res, err := agent.Completed(a.Role(), out)
	if err != nil {
		return agent.Result{}, err
	}
	if path := writeArtifact(a.artifacts, in, "research/api_research.json", []byte(payloadJSON(out, 1<<20))); path != "" {
		res.Artifacts = append(res.Artifacts, path)
	}
	res.Metrics = map[string]float64{
		"apis_called": float64(out.Called),
		"apis_failed": float64(out.Failed),
	}
	return res, nil
}

func (a *APIResearcher) call(ctx context.Context, r runstate.APIRequest) APIResult {
	ar := APIResult{Name: r.Name, URL: r.URL, RetrievedAt: time.Now()}
	if m := strings.ToUpper(r.Method); m != "" && m != http.MethodGet {
		ar.Error = fmt.Sprintf("unsupported method %s", m)
		return ar
	}
	data, page, err := a.fetcher.GetJSON(ctx, r.URL, r.Params, r.Headers)
	if page != nil {
		ar.StatusCode = page.StatusCode
		ar.RetrievedAt = page.FetchedAt
	}
	if err != nil {
		ar.Error = err.Error()
		return ar
	}
	ar.Data = data
	return ar
}

func apiName(r runstate.APIRequest) string {
	if r.Name != "" {
		return r.Name
	}
	return r.URL
}
