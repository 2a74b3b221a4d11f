package domain

import (
	"strings"
)

// Role identifies the caller's marketplace role. Every role except Agent
// must supply an account id, which scopes query results to documents the
// account may view.
type Role string

const (
	RoleSeller  Role = "SELLER"
	RoleBuyer   Role = "BUYER"
	RoleCarrier Role = "CARRIER"
	RoleAgent   Role = "AGENT"
)

// IsValid checks whether the role is one of the known marketplace roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSeller, RoleBuyer, RoleCarrier, RoleAgent:
		return true
	}
	return false
}

// WildcardText is the search-text sentinel meaning "match everything".
const WildcardText = "*"

// Pagination defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// SearchRequest holds all parameters for a role-scoped search.
type SearchRequest struct {
	UserType    Role     `json:"userType"`
	AccountID   string   `json:"accountId,omitempty"`
	SearchText  string   `json:"searchText"`
	Page        int      `json:"page"`
	Limit       int      `json:"limit"`
	EntityTypes []string `json:"entityTypes,omitempty"`
	Status      string   `json:"status,omitempty"`
	Make        string   `json:"make,omitempty"`
	Model       string   `json:"model,omitempty"`
	MinYear     *int     `json:"minYear,omitempty"`
	MaxYear     *int     `json:"maxYear,omitempty"`
	MinPrice    *float64 `json:"minPrice,omitempty"`
	MaxPrice    *float64 `json:"maxPrice,omitempty"`
	Location    string   `json:"location,omitempty"`
}

// Normalize applies pagination defaults and bounds in place.
func (r *SearchRequest) Normalize() {
	if r.Page < 1 {
		r.Page = DefaultPage
	}
	if r.Limit < 1 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
}

// NormalizedText returns the search text lowercased and trimmed. An empty
// string or the wildcard sentinel both mean "match everything".
func (r *SearchRequest) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(r.SearchText))
}

// MatchAll reports whether the request carries no text constraint.
func (r *SearchRequest) MatchAll() bool {
	t := r.NormalizedText()
	return t == "" || t == WildcardText
}

// SearchResult is the paginated search response. Total is the index-wide
// match count, not the page size; Pages = ceil(Total/Limit).
type SearchResult struct {
	Results      []SearchDocument `json:"results"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	Limit        int              `json:"limit"`
	Pages        int              `json:"pages"`
	Aggregations *Aggregations    `json:"aggregations,omitempty"`
}

// Aggregations holds bucket counts computed alongside a search.
type Aggregations struct {
	EntityTypes map[string]int64 `json:"entity_types"`
	Statuses    map[string]int64 `json:"statuses"`
}

// EmptyResult returns a well-formed zero result for the given request,
// used by the degrade-to-empty failure policy on the read path.
func EmptyResult(req *SearchRequest) *SearchResult {
	return &SearchResult{
		Results: []SearchDocument{},
		Total:   0,
		Page:    req.Page,
		Limit:   req.Limit,
		Pages:   0,
	}
}

// Pages computes ceil(total/limit) for a positive limit.
func Pages(total, limit int) int {
	if limit < 1 || total < 1 {
		return 0
	}
	pages := total / limit
	if total%limit > 0 {
		pages++
	}
	return pages
}

// PriceStats holds aggregate price figures across the whole index.
type PriceStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
}

// IndexStats is the read-only operational aggregate over the whole index.
type IndexStats struct {
	TotalDocuments int64            `json:"total_documents"`
	ByEntityType   map[string]int64 `json:"by_entity_type"`
	ByStatus       map[string]int64 `json:"by_status"`
	Price          PriceStats       `json:"price"`
}
