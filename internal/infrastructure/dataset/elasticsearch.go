package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/sitelens/backend/internal/domain"
)

// Defaults for ElasticsearchConfig
const (
	DefaultIndex        = "sitelens-locations"
	DefaultSearchSize   = 1000
	DefaultFetchTimeout = 5 * time.Second
)

// locationMapping keeps area and categories as exact-match keywords
const locationMapping = `{
  "mappings": {
    "properties": {
      "id":                 {"type": "keyword"},
      "name":               {"type": "text"},
      "area":               {"type": "keyword"},
      "footTraffic":        {"type": "float"},
      "rentIndex":          {"type": "float"},
      "estimatedCost":      {"type": "double"},
      "competitorCount":    {"type": "integer"},
      "demographics":       {"type": "object", "dynamic": true},
      "suitableCategories": {"type": "keyword"}
    }
  }
}`

// ElasticsearchConfig holds configuration for the Elasticsearch dataset
type ElasticsearchConfig struct {
	Addresses    []string
	Username     string
	Password     string
	Index        string
	SearchSize   int // page size; results are paged with search_after
	FetchTimeout time.Duration
	Transport    http.RoundTripper // optional, used by tests
}

// ElasticsearchDataset reads locations from an Elasticsearch index
type ElasticsearchDataset struct {
	client     *elasticsearch.Client
	index      string
	searchSize int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewElasticsearchDataset creates an Elasticsearch client for the location index
func NewElasticsearchDataset(config ElasticsearchConfig, logger *zap.Logger) (*ElasticsearchDataset, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	index := config.Index
	if index == "" {
		index = DefaultIndex
	}
	size := config.SearchSize
	if size <= 0 {
		size = DefaultSearchSize
	}
	timeout := config.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ElasticsearchDataset{
		client:     client,
		index:      index,
		searchSize: size,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source domain.Location `json:"_source"`
			Sort   []interface{}   `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

type getResponse struct {
	Found  bool            `json:"found"`
	Source domain.Location `json:"_source"`
}

// FetchLocations searches the index for an area's locations suitable for a category.
// Every matching document is read, one page of searchSize hits at a time.
func (es *ElasticsearchDataset) FetchLocations(ctx context.Context, area string, category domain.Category) ([]domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, es.timeout)
	defer cancel()

	locations := make([]domain.Location, 0)
	var after []interface{}
	for page := 0; ; page++ {
		result, err := es.search(ctx, es.buildQuery(area, category, after))
		if err != nil {
			return nil, err
		}

		hits := result.Hits.Hits
		for _, hit := range hits {
			loc := hit.Source
			if loc.ID == "" {
				loc.ID = hit.ID
			}
			if err := loc.Validate(); err != nil {
				es.logger.Warn("skipping invalid location document", zap.String("id", hit.ID), zap.Error(err))
				continue
			}
			if !loc.SuitableFor(category) {
				continue
			}
			locations = append(locations, loc)
		}

		if len(hits) < es.searchSize {
			if page > 0 {
				es.logger.Debug("paged location search",
					zap.String("area", area),
					zap.Int("pages", page+1),
					zap.Int("locations", len(locations)))
			}
			return locations, nil
		}

		after = hits[len(hits)-1].Sort
		if len(after) == 0 {
			return nil, fmt.Errorf("search locations: page %d has no sort values to continue from", page)
		}
	}
}

func (es *ElasticsearchDataset) search(ctx context.Context, body map[string]interface{}) (*searchResponse, error) {
	query, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := es.client.Search(
		es.client.Search.WithContext(ctx),
		es.client.Search.WithIndex(es.index),
		es.client.Search.WithBody(bytes.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("search locations: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search locations", res)
	}

	var result searchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &result, nil
}

// FetchLocation gets a single location document by ID
func (es *ElasticsearchDataset) FetchLocation(ctx context.Context, id string) (*domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, es.timeout)
	defer cancel()

	res, err := es.client.Get(es.index, id, es.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, id)
	}
	if res.IsError() {
		return nil, responseError("get location", res)
	}

	var result getResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	if !result.Found {
		return nil, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, id)
	}

	loc := result.Source
	if loc.ID == "" {
		loc.ID = id
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

// EnsureIndex creates the location index with its mapping when it does not exist
func (es *ElasticsearchDataset) EnsureIndex(ctx context.Context) error {
	res, err := es.client.Indices.Exists([]string{es.index}, es.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = es.client.Indices.Create(
		es.index,
		es.client.Indices.Create.WithBody(strings.NewReader(locationMapping)),
		es.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

// IndexLocations bulk-indexes locations, replacing documents with the same ID
func (es *ElasticsearchDataset) IndexLocations(ctx context.Context, locations []domain.Location) error {
	if len(locations) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range locations {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": es.index, "_id": locations[i].ID},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(locations[i]); err != nil {
			return fmt.Errorf("encode location %s: %w", locations[i].ID, err)
		}
	}

	req := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, es.client)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("bulk index", res)
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if result.Errors {
		return fmt.Errorf("bulk index: some documents were rejected")
	}

	es.logger.Info("locations indexed", zap.String("index", es.index), zap.Int("count", len(locations)))
	return nil
}

// buildQuery filters by area and by category, treating documents without
// categories as suitable for any category. after continues from a previous page.
func (es *ElasticsearchDataset) buildQuery(area string, category domain.Category, after []interface{}) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"suitableCategories": string(category)}},
					map[string]interface{}{"bool": map[string]interface{}{
						"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "suitableCategories"}},
					}},
				},
				"minimum_should_match": 1,
			},
		},
	}
	if area != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"area": area}})
	}

	query := map[string]interface{}{
		"size":  es.searchSize,
		"query": map[string]interface{}{"bool": map[string]interface{}{"filter": filters}},
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
	}
	if len(after) > 0 {
		query["search_after"] = after
	}
	return query
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: status %d: %s", op, res.StatusCode, strings.TrimSpace(string(body)))
}
