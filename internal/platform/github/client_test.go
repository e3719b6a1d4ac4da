package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{Token: "tok", BaseURL: srv.URL})
	require.NoError(t, err)
	return c, srv
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeGraphQL(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()
	var req graphqlRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestListUpdatedItems_PaginatesAndMapsState(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/r1/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"node_id":"I_2","number":2,"state":"closed","user":{"login":"bob"},
				"repository_url":"https://api.github.com/repos/org/r1","updated_at":"2026-10-14T09:00:00Z"}]`)
			return
		}
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "2026-10-13T00:00:00Z", r.URL.Query().Get("since"))
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/org/r1/issues?page=2>; rel="next", <%s/repos/org/r1/issues?page=2>; rel="last"`, srvURL, srvURL))
		fmt.Fprint(w, `[
			{"node_id":"PR_1","number":1,"state":"closed","user":{"login":"alice"},"assignees":[{"login":"alice"}],
			 "repository_url":"https://api.github.com/repos/org/r1","updated_at":"2026-10-14T10:00:00Z",
			 "pull_request":{"merged_at":"2026-10-14T10:00:00Z"}},
			{"node_id":"PR_3","number":3,"state":"open","draft":true,"user":{"login":"alice"},
			 "repository_url":"https://api.github.com/repos/org/r1","updated_at":"2026-10-14T11:00:00Z",
			 "pull_request":{"merged_at":null}}
		]`)
	})
	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	items, err := c.ListUpdatedItems(context.Background(), "org/r1", time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, ir.Item{
		ContentID:  "PR_1",
		Number:     1,
		Repository: "org/r1",
		Kind:       ir.KindPullRequest,
		Author:     "alice",
		Assignees:  []string{"alice"},
		State:      ir.StateMerged,
		UpdatedAt:  time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC),
	}, items[0])
	assert.Equal(t, ir.StateOpen, items[1].State)
	assert.True(t, items[1].IsDraft)
	assert.Equal(t, ir.KindIssue, items[2].Kind)
	assert.Equal(t, ir.StateClosed, items[2].State)
}

func TestListUpdatedItems_ReplaysETagOnNotModified(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/r1/issues", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `[{"node_id":"I_1","number":1,"state":"open","user":{"login":"a"},"repository_url":"https://api.github.com/repos/org/r1"}]`)
	})
	c, _ := newTestClient(t, mux)

	since := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	first, err := c.ListUpdatedItems(context.Background(), "org/r1", since)
	require.NoError(t, err)
	second, err := c.ListUpdatedItems(context.Background(), "org/r1", since)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, c.ETags().Hits())
}

func TestListAssignedItems_SearchQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org:org assignee:alice updated:>=2026-10-13T00:00:00Z", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"items":[{"node_id":"I_9","number":9,"state":"open","user":{"login":"carol"},
			"assignees":[{"login":"alice"}],"repository_url":"https://api.github.com/repos/org/r2"}]}`)
	})
	c, _ := newTestClient(t, mux)

	items, err := c.ListAssignedItems(context.Background(), "org", "alice", time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "org/r2", items[0].Repository)
	assert.Equal(t, []string{"alice"}, items[0].Assignees)
}

func TestAddAssignees(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/r1/issues/7/assignees", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"assignees":["alice"]}`, string(body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/repos/org/r1/issues/8/assignees", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	c, _ := newTestClient(t, mux)

	require.NoError(t, c.AddAssignees(context.Background(), "org/r1", 7, []string{"alice"}))

	err := c.AddAssignees(context.Background(), "org/r1", 8, []string{"alice"})
	var ae *platform.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.StatusCode)
	assert.Equal(t, "Not Found", ae.Message)
	assert.False(t, platform.IsRetryable(err))
}

func TestServerErrorIsRetryable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/r1/issues/1/assignees", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c, _ := newTestClient(t, mux)

	err := c.AddAssignees(context.Background(), "org/r1", 1, []string{"a"})
	assert.Equal(t, http.StatusBadGateway, platform.StatusCode(err))
	assert.True(t, platform.IsRetryable(err))
}

// graphqlHandler answers GraphQL requests by the first operation name found
// in the query text.
func graphqlHandler(t *testing.T, replies map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		for marker, reply := range replies {
			if strings.Contains(req.Query, marker) {
				fmt.Fprint(w, reply)
				return
			}
		}
		t.Errorf("unexpected query: %s", req.Query)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestListBoardMembers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphqlHandler(t, map[string]string{
		"items(first: 100": `{"data":{"node":{"items":{
			"pageInfo":{"hasNextPage":true,"endCursor":"c1"},
			"nodes":[
				{"id":"PVTI_1","content":{"__typename":"PullRequest","id":"PR_1","number":1,
				  "repository":{"nameWithOwner":"org/r1"},"assignees":{"nodes":[{"login":"alice"}]}},
				 "fieldValues":{"nodes":[
				  {"__typename":"ProjectV2ItemFieldSingleSelectValue","name":"Active","field":{"name":"Status"}},
				  {"__typename":"ProjectV2ItemFieldIterationValue","iterationId":"it-1","field":{"name":"Sprint"}},
				  {"__typename":"ProjectV2ItemFieldTextValue"}]}},
				{"id":"PVTI_2","content":{"__typename":"DraftIssue"},"fieldValues":{"nodes":[]}}
			]}}}}`,
	}))
	c, _ := newTestClient(t, mux)

	page, err := c.ListBoardMembers(context.Background(), "PVT_1", "")
	require.NoError(t, err)

	assert.True(t, page.HasNext)
	assert.Equal(t, "c1", page.NextCursor)
	require.Len(t, page.Members, 1)
	m := page.Members[0]
	assert.Equal(t, "PVTI_1", m.ProjectItemID)
	assert.Equal(t, "PR_1", m.ContentID)
	assert.Equal(t, ir.KindPullRequest, m.Kind)
	assert.Equal(t, "org/r1", m.Repository)
	assert.Equal(t, []string{"alice"}, m.Assignees)
	assert.Equal(t, map[string]string{"Status": "Active"}, m.SingleSelect)
	assert.Equal(t, map[string]string{"Sprint": "it-1"}, m.Iteration)
}

func TestListBoardFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphqlHandler(t, map[string]string{
		"fields(first: 50)": `{"data":{"node":{"fields":{"nodes":[
			{"__typename":"ProjectV2Field","id":"F_title","name":"Title"},
			{"__typename":"ProjectV2SingleSelectField","id":"F_status","name":"Status",
			 "options":[{"id":"o1","name":"Active"},{"id":"o2","name":"Done"}]},
			{"__typename":"ProjectV2IterationField","id":"F_sprint","name":"Sprint",
			 "configuration":{"iterations":[{"id":"it-2","title":"Sprint 2","startDate":"2026-10-12","duration":14}],
			  "completedIterations":[{"id":"it-1","title":"Sprint 1","startDate":"2026-09-28","duration":14}]}}
		]}}}}`,
	}))
	c, _ := newTestClient(t, mux)

	fields, err := c.ListBoardFields(context.Background(), "PVT_1")
	require.NoError(t, err)
	require.Len(t, fields, 3)

	assert.Equal(t, platform.FieldKindOther, fields[0].Kind)
	assert.Equal(t, platform.FieldKindSingleSelect, fields[1].Kind)
	assert.Equal(t, []platform.FieldOption{{ID: "o1", Name: "Active"}, {ID: "o2", Name: "Done"}}, fields[1].Options)
	assert.Equal(t, platform.FieldKindIteration, fields[2].Kind)
	assert.Equal(t, []ir.Iteration{
		{ID: "it-2", Title: "Sprint 2", StartDate: "2026-10-12", Duration: 14},
		{ID: "it-1", Title: "Sprint 1", StartDate: "2026-09-28", Duration: 14},
	}, fields[2].Iterations)
}

func TestAdmitAndSetFields(t *testing.T) {
	var setCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		input, _ := req.Variables["input"].(map[string]any)
		switch {
		case strings.Contains(req.Query, "addProjectV2ItemById"):
			assert.Equal(t, "PVT_1", input["projectId"])
			assert.Equal(t, "PR_1", input["contentId"])
			fmt.Fprint(w, `{"data":{"addProjectV2ItemById":{"item":{"id":"PVTI_9"}}}}`)
		case strings.Contains(req.Query, "updateProjectV2ItemFieldValue"):
			setCalls.Add(1)
			assert.Equal(t, "PVTI_9", input["itemId"])
			value := input["value"].(map[string]any)
			if _, ok := value["singleSelectOptionId"]; !ok {
				assert.Equal(t, "it-2", value["iterationId"])
			}
			fmt.Fprint(w, `{"data":{"updateProjectV2ItemFieldValue":{"projectV2Item":{"id":"PVTI_9"}}}}`)
		}
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	id, err := c.AdmitToBoard(ctx, "PVT_1", "PR_1")
	require.NoError(t, err)
	assert.Equal(t, "PVTI_9", id)

	require.NoError(t, c.SetSingleSelectField(ctx, "PVT_1", id, "F_status", "o1"))
	require.NoError(t, c.SetIterationField(ctx, "PVT_1", id, "F_sprint", "it-2"))
	assert.Equal(t, int32(2), setCalls.Load())
}

func TestGraphQLErrorsMapToStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphqlHandler(t, map[string]string{
		"closingIssuesReferences": `{"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a node"}]}`,
		"addProjectV2ItemById":    `{"errors":[{"type":"RATE_LIMITED","message":"slow down"}]}`,
	}))
	c, _ := newTestClient(t, mux)

	_, err := c.ListClosingIssueReferences(context.Background(), "PR_x")
	assert.Equal(t, http.StatusNotFound, platform.StatusCode(err))

	_, err = c.AdmitToBoard(context.Background(), "PVT_1", "PR_1")
	assert.Equal(t, http.StatusTooManyRequests, platform.StatusCode(err))
	assert.True(t, platform.IsRetryable(err))
}

func TestListClosingIssueReferences(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphqlHandler(t, map[string]string{
		"closingIssuesReferences": `{"data":{"node":{"closingIssuesReferences":{"nodes":[
			{"id":"I_4","number":4,"state":"OPEN","repository":{"nameWithOwner":"org/r1"},
			 "assignees":{"nodes":[{"login":"alice"}]}}]}}}}`,
	}))
	c, _ := newTestClient(t, mux)

	refs, err := c.ListClosingIssueReferences(context.Background(), "PR_1")
	require.NoError(t, err)
	assert.Equal(t, []ir.IssueRef{{
		ContentID: "I_4", Number: 4, Repository: "org/r1", State: ir.StateOpen, Assignees: []string{"alice"},
	}}, refs)
}

func TestRateLimitRemaining(t *testing.T) {
	var rateCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		rateCalls.Add(1)
		fmt.Fprint(w, `{"resources":{"core":{"remaining":4999,"reset":1791600000}}}`)
	})
	mux.HandleFunc("/repos/org/r1/issues/1/assignees", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "1791600100")
		w.WriteHeader(http.StatusCreated)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	rl, err := c.RateLimitRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4999, rl.Remaining)
	assert.Equal(t, time.Unix(1791600000, 0), rl.Reset)

	require.NoError(t, c.AddAssignees(ctx, "org/r1", 1, []string{"a"}))
	rl, err = c.RateLimitRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, rl.Remaining)
	assert.Equal(t, time.Unix(1791600100, 0), rl.Reset)
	assert.Equal(t, int32(1), rateCalls.Load())
}

func TestRepoFromURL(t *testing.T) {
	assert.Equal(t, "org/r1", repoFromURL("https://api.github.com/repos/org/r1"))
	assert.Equal(t, "", repoFromURL("https://example.com/other"))
}

func TestListBoardMembers_SendsCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		assert.Equal(t, "PVT_1", req.Variables["id"])
		assert.Equal(t, "c1", req.Variables["cursor"])
		fmt.Fprint(w, `{"data":{"node":{"items":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[]}}}}`)
	})
	c, _ := newTestClient(t, mux)

	page, err := c.ListBoardMembers(context.Background(), "PVT_1", "c1")
	require.NoError(t, err)
	assert.False(t, page.HasNext)
	assert.Empty(t, page.Members)
}

func TestBoardNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", graphqlHandler(t, map[string]string{
		"fields(first: 50)": `{"data":{"node":null}}`,
	}))
	c, _ := newTestClient(t, mux)

	_, err := c.ListBoardFields(context.Background(), "PVT_missing")
	assert.Equal(t, http.StatusNotFound, platform.StatusCode(err))
	assert.False(t, platform.IsRetryable(err))
}

func TestGraphQLHTTPFailureIsRetryable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"try later"}`)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.AdmitToBoard(context.Background(), "PVT_1", "PR_1")
	var ae *platform.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusServiceUnavailable, ae.StatusCode)
	assert.Equal(t, "try later", ae.Message)
	assert.True(t, platform.IsRetryable(err))
}

func TestUndecodableGraphQLReplyIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"node":`)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.ListBoardFields(context.Background(), "PVT_1")
	require.Error(t, err)
	assert.Equal(t, 0, platform.StatusCode(err))
	assert.False(t, platform.IsRetryable(err))
}

func TestTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(Config{Token: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.AddAssignees(context.Background(), "org/r1", 1, []string{"a"})
	require.Error(t, err)
	assert.Equal(t, 0, platform.StatusCode(err))
	assert.True(t, platform.IsRetryable(err))
}

func TestInvalidRepositoryIsTerminal(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.ListUpdatedItems(context.Background(), "no-slash", time.Now())
	require.Error(t, err)
	assert.False(t, platform.IsRetryable(err))
}
