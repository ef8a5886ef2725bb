package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/require"
)

// fakeES serves a canned response for every request and records the last
// request body so tests can inspect the query that was sent.
func fakeES(t *testing.T, response string) (*elasticsearch.Client, *[]byte) {
	t.Helper()

	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			lastBody = body
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, &lastBody
}

func TestSearchDecodesHits(t *testing.T) {
	resp := `{
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_id": "p1", "_source": {"id": "p1", "title": "my day", "content": "sunny", "public": true, "owner_id": 7}},
				{"_id": "p2", "_source": {"title": "notes", "content": "rain", "public": false, "owner_id": 3}}
			]
		}
	}`
	client, _ := fakeES(t, resp)

	total, pages, err := Search(context.Background(), client, "pages", "day", 3, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, pages, 2)

	require.Equal(t, "p1", pages[0].ID)
	require.Equal(t, "my day", pages[0].Title)
	require.Equal(t, "sunny", pages[0].Content)
	require.True(t, pages[0].Public)
	require.Equal(t, uint(7), pages[0].OwnerID)

	// A document without an id field falls back to the hit's _id.
	require.Equal(t, "p2", pages[1].ID)
	require.Equal(t, "notes", pages[1].Title)
}

func TestSearchQueryRestrictsVisibility(t *testing.T) {
	client, lastBody := fakeES(t, `{"hits": {"total": {"value": 0}, "hits": []}}`)

	_, _, err := Search(context.Background(), client, "pages", "day", 42, 10, 5)
	require.NoError(t, err)
	require.NotEmpty(t, *lastBody)

	var q struct {
		Query struct {
			Bool struct {
				Must struct {
					MultiMatch struct {
						Query  string   `json:"query"`
						Fields []string `json:"fields"`
					} `json:"multi_match"`
				} `json:"must"`
				Should             []map[string]map[string]any `json:"should"`
				MinimumShouldMatch int                         `json:"minimum_should_match"`
			} `json:"bool"`
		} `json:"query"`
		From int `json:"from"`
		Size int `json:"size"`
	}
	require.NoError(t, json.Unmarshal(*lastBody, &q))

	require.Equal(t, "day", q.Query.Bool.Must.MultiMatch.Query)
	require.Equal(t, []string{"title^2", "content"}, q.Query.Bool.Must.MultiMatch.Fields)
	require.Equal(t, 1, q.Query.Bool.MinimumShouldMatch)
	require.Equal(t, 10, q.From)
	require.Equal(t, 5, q.Size)

	require.Len(t, q.Query.Bool.Should, 2)
	require.Equal(t, true, q.Query.Bool.Should[0]["term"]["public"])
	require.Equal(t, float64(42), q.Query.Bool.Should[1]["term"]["owner_id"])
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "boom"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	_, _, err = Search(context.Background(), client, "pages", "day", 1, 0, 10)
	require.Error(t, err)
}
