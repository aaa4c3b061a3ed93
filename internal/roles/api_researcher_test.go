package roles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func TestAPIResearcherSkipsWithoutRequests(t *testing.T) {
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)
	res, err := NewAPIResearcher(nil, nil).Execute(context.Background(), in)
	require.NoError(t, err)

	var data APIData
	require.NoError(t, json.Unmarshal(res.Payload, &data))
	assert.Equal(t, APIStatusSkipped, data.Status)
	assert.Empty(t, data.Results)
}

func TestAPIResearcherCallsEndpoints(t *testing.T) {
	srv := researchServer(t)
	store := newMemArtifacts()
	req := runstate.DefaultRequirements("EV market")
	req.APIRequests = []runstate.APIRequest{
		{Name: "sales", URL: srv.URL + "/v1/sales", Params: map[string]string{"region": "eu"}},
		{Name: "upload", URL: srv.URL + "/v1/sales", Method: "post"},
		{Name: "missing", URL: srv.URL + "/v1/none"},
	}
	in := newInput(t, req, nil)

	out := runRole(t, NewAPIResearcher(testFetcher(srv), store), in)
	require.Nil(t, out.Error)

	var data APIData
	require.NoError(t, json.Unmarshal(out.Result.Payload, &data))
	assert.Equal(t, APIStatusCompleted, data.Status)
	assert.Equal(t, 1, data.Called)
	assert.Equal(t, 2, data.Failed)
	require.Len(t, data.Results, 3)

	sales := data.Results[0]
	assert.Equal(t, 200, sales.StatusCode)
	assert.Equal(t, map[string]any{"units": 1200.0, "region": "eu"}, sales.Data)
	assert.Equal(t, "api_researcher-1", sales.CitationID)
	assert.Equal(t, "unsupported method POST", data.Results[1].Error)
	assert.Contains(t, data.Results[2].Error, "404")

	require.Len(t, out.Result.Citations, 1)
	assert.Equal(t, "API: sales", out.Result.Citations[0].Title)
	assert.Equal(t, runstate.RoleAPIResearcher, out.Result.Citations[0].Source)
	assert.Equal(t, 1.0, out.Result.Metrics["apis_called"])
	assert.Equal(t, 2.0, out.Result.Metrics["apis_failed"])

	_, ok := store.file("research/api_research.json")
	assert.True(t, ok)
}
