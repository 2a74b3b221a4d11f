package elasticsearch

import (
	"strings"

	"github.com/autolane/search-service/internal/domain"
)

// buildSearchQuery constructs the Elasticsearch query DSL for a validated,
// normalized search request. The shape is:
//
//	bool.must    = the text query (match_all when no text is given)
//	bool.filter  = permission filter + structured filters, AND-ed
//
// The permission filter is itself a bool query with minimum_should_match=1,
// so a document is visible when the caller satisfies at least one of the
// role's clauses. Agent requests carry no permission filter at all.
func buildSearchQuery(req *domain.SearchRequest) map[string]any {
	boolQuery := map[string]any{
		"must": []any{buildTextQuery(req)},
	}

	filters := buildFilters(req)
	if perm := buildPermissionFilter(req); perm != nil {
		filters = append(filters, perm)
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query": map[string]any{
			"bool": boolQuery,
		},
		"from":             (req.Page - 1) * req.Limit,
		"size":             req.Limit,
		"track_total_hits": true,
		"sort": []any{
			map[string]any{"created_at": "desc"},
		},
		"aggs": map[string]any{
			"entity_types": map[string]any{
				"terms": map[string]any{"field": "entity_type"},
			},
			"statuses": map[string]any{
				"terms": map[string]any{"field": "status"},
			},
		},
	}
}

// buildTextQuery produces the union text clause: a weighted multi-field
// match over searchable_text and location, an exact term match on make,
// model, and vin, and a vin substring wildcard. At least one branch must
// match. One request shape covers free text, categorical exact matches,
// and partial VIN lookups.
func buildTextQuery(req *domain.SearchRequest) map[string]any {
	if req.MatchAll() {
		return map[string]any{"match_all": map[string]any{}}
	}

	text := req.NormalizedText()
	upper := strings.ToUpper(text)

	should := []any{
		map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"searchable_text^3", "location"},
				"type":   "best_fields",
			},
		},
		map[string]any{
			"term": map[string]any{
				"make": map[string]any{"value": upper, "case_insensitive": true},
			},
		},
		map[string]any{
			"term": map[string]any{
				"model": map[string]any{"value": upper, "case_insensitive": true},
			},
		},
		map[string]any{
			"term": map[string]any{
				"vin": map[string]any{"value": upper, "case_insensitive": true},
			},
		},
		map[string]any{
			"wildcard": map[string]any{
				"vin": map[string]any{"value": "*" + upper + "*", "case_insensitive": true},
			},
		},
	}

	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

// buildPermissionFilter derives the authorization filter from the caller's
// role and account id. Returns nil for agents, who see everything. The
// caller must have rejected non-agent requests without an account id before
// reaching this point; the filter never falls back to an unscoped query.
func buildPermissionFilter(req *domain.SearchRequest) map[string]any {
	var should []any

	switch req.UserType {
	case domain.RoleAgent:
		return nil

	case domain.RoleSeller:
		should = []any{
			map[string]any{"term": map[string]any{"permissions.seller_ids": req.AccountID}},
			map[string]any{"term": map[string]any{"seller_id": req.AccountID}},
		}

	case domain.RoleBuyer:
		// Buyers see the open marketplace (ACTIVE offers) plus their own history.
		should = []any{
			map[string]any{"term": map[string]any{"permissions.buyer_ids": req.AccountID}},
			map[string]any{"term": map[string]any{"permissions.buyer_ids": domain.AllBuyers}},
			map[string]any{"term": map[string]any{"buyer_id": req.AccountID}},
			map[string]any{
				"bool": map[string]any{
					"must": []any{
						map[string]any{"term": map[string]any{"entity_type": domain.EntityTypeOffer}},
						map[string]any{"term": map[string]any{"status": domain.StatusActive}},
					},
				},
			},
		}

	case domain.RoleCarrier:
		should = []any{
			map[string]any{"term": map[string]any{"permissions.carrier_ids": req.AccountID}},
			map[string]any{"term": map[string]any{"carrier_id": req.AccountID}},
		}

	default:
		// Unknown role: match nothing rather than everything.
		should = []any{}
	}

	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

// buildFilters constructs the structured AND-ed filter clauses.
func buildFilters(req *domain.SearchRequest) []any {
	var filters []any

	if len(req.EntityTypes) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"entity_type": req.EntityTypes},
		})
	}
	if req.Status != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"status": req.Status},
		})
	}
	if req.Make != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"make": map[string]any{"value": req.Make, "case_insensitive": true}},
		})
	}
	if req.Model != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"model": map[string]any{"value": req.Model, "case_insensitive": true}},
		})
	}
	if req.Location != "" {
		filters = append(filters, map[string]any{
			"match": map[string]any{"location": req.Location},
		})
	}

	if req.MinYear != nil || req.MaxYear != nil {
		yearRange := map[string]any{}
		if req.MinYear != nil {
			yearRange["gte"] = *req.MinYear
		}
		if req.MaxYear != nil {
			yearRange["lte"] = *req.MaxYear
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"year": yearRange},
		})
	}

	if req.MinPrice != nil || req.MaxPrice != nil {
		priceRange := map[string]any{}
		if req.MinPrice != nil {
			priceRange["gte"] = *req.MinPrice
		}
		if req.MaxPrice != nil {
			priceRange["lte"] = *req.MaxPrice
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"price": priceRange},
		})
	}

	return filters
}
