package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// esSuggestResponse decodes suggest query responses. Only the categorical
// source fields are requested.
type esSuggestResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Make  string `json:"make"`
				Model string `json:"model"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Suggest returns autocomplete suggestions for the given prefix. It matches
// the edge_ngram searchable_text.autocomplete field and prefix queries on
// make and model, but only ever surfaces make/model values: suggestions come
// from the closed categorical vocabulary, never permission-scoped free text.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	prefixLower := strings.ToLower(strings.TrimSpace(prefix))
	if prefixLower == "" {
		return []string{}, nil
	}

	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{
						"match": map[string]any{"searchable_text.autocomplete": prefixLower},
					},
					map[string]any{
						"prefix": map[string]any{
							"make": map[string]any{"value": prefixLower, "case_insensitive": true},
						},
					},
					map[string]any{
						"prefix": map[string]any{
							"model": map[string]any{"value": prefixLower, "case_insensitive": true},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		// Fetch more hits than suggestions: multiple documents share a make/model.
		"size":    limit * 10,
		"_source": []string{"make", "model"},
	}

	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return nil, fmt.Errorf("elasticsearch suggest: %s: %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return nil, fmt.Errorf("elasticsearch suggest: unexpected status %s", res.Status())
	}

	var esResp esSuggestResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: decode response: %w", err)
	}

	// Keep only categorical values that actually start with the prefix,
	// deduplicated while preserving ranking order.
	seen := make(map[string]struct{})
	suggestions := make([]string, 0, limit)
	for _, hit := range esResp.Hits.Hits {
		for _, candidate := range []string{hit.Source.Make, hit.Source.Model} {
			if candidate == "" || !strings.HasPrefix(strings.ToLower(candidate), prefixLower) {
				continue
			}
			if _, exists := seen[candidate]; exists {
				continue
			}
			seen[candidate] = struct{}{}
			suggestions = append(suggestions, candidate)
			if len(suggestions) >= limit {
				return suggestions, nil
			}
		}
	}

	return suggestions, nil
}
