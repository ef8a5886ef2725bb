package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/daypage/backend/internal/models"
)

// Search runs a fuzzy title/content query over the page index, limited to
// public pages and the caller's own pages.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, userID uint, from, size int) (int64, []models.Page, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"title^2", "content"},
						"fuzziness": "AUTO",
					},
				},
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"public": true}},
					{"term": map[string]interface{}{"owner_id": userID}},
				},
				"minimum_should_match": 1,
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string      `json:"_id"`
				Source models.Page `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	pages := make([]models.Page, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		pages[i] = hit.Source
		if pages[i].ID == "" {
			pages[i].ID = hit.ID
		}
	}
	return r.Hits.Total.Value, pages, nil
}

// IndexPage upserts the page document. Index maintenance is best-effort from
// the handlers' point of view: callers log failures and continue.
func IndexPage(ctx context.Context, es *elasticsearch.Client, index string, page models.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("index page: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithDocumentID(page.ID),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index page: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index page: %s", res.Status())
	}
	return nil
}

func DeletePage(ctx context.Context, es *elasticsearch.Client, index, id string) error {
	res, err := es.Delete(index, id, es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete page from index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete page from index: %s", res.Status())
	}
	return nil
}
