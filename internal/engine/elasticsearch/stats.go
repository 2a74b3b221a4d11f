package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/autolane/search-service/internal/domain"
)

// esStatsResponse decodes the stats aggregation response.
type esStatsResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations struct {
		EntityTypes esTermsAgg `json:"entity_types"`
		Statuses    esTermsAgg `json:"statuses"`
		Price       struct {
			Count int64   `json:"count"`
			Min   float64 `json:"min"`
			Max   float64 `json:"max"`
			Avg   float64 `json:"avg"`
			Sum   float64 `json:"sum"`
		} `json:"price"`
	} `json:"aggregations"`
}

// Stats returns the unscoped whole-index aggregate: total document count,
// counts by entity type and status, and price min/max/avg/sum.
func (e *Engine) Stats(ctx context.Context) (*domain.IndexStats, error) {
	query := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]any{
			"entity_types": map[string]any{
				"terms": map[string]any{"field": "entity_type"},
			},
			"statuses": map[string]any{
				"terms": map[string]any{"field": "status"},
			},
			"price": map[string]any{
				"stats": map[string]any{"field": "price"},
			},
		},
	}

	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch stats: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch stats: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return nil, fmt.Errorf("elasticsearch stats: %s: %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return nil, fmt.Errorf("elasticsearch stats: unexpected status %s", res.Status())
	}

	var esResp esStatsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch stats: decode response: %w", err)
	}

	stats := &domain.IndexStats{
		TotalDocuments: esResp.Hits.Total.Value,
		ByEntityType:   make(map[string]int64),
		ByStatus:       make(map[string]int64),
		Price: domain.PriceStats{
			Count: esResp.Aggregations.Price.Count,
			Min:   esResp.Aggregations.Price.Min,
			Max:   esResp.Aggregations.Price.Max,
			Avg:   esResp.Aggregations.Price.Avg,
			Sum:   esResp.Aggregations.Price.Sum,
		},
	}
	for _, b := range esResp.Aggregations.EntityTypes.Buckets {
		stats.ByEntityType[b.Key] = b.DocCount
	}
	for _, b := range esResp.Aggregations.Statuses.Buckets {
		stats.ByStatus[b.Key] = b.DocCount
	}

	return stats, nil
}
