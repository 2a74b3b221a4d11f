package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/autolane/search-service/internal/domain"
)

// Engine is an in-memory implementation of the SearchEngine interface with
// the same visibility and matching semantics as the Elasticsearch engine.
// Used for development without a backing cluster and in tests.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]domain.SearchDocument
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		docs: make(map[string]domain.SearchDocument),
	}
}

// Index adds or fully replaces a document. Replacement is whole-document;
// no fields from a previous version survive.
func (e *Engine) Index(_ context.Context, doc *domain.SearchDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[doc.ID()] = *doc
	return nil
}

// Delete removes a document by entity type and id. Missing documents are a no-op.
func (e *Engine) Delete(_ context.Context, entityType, entityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, domain.DocumentID(entityType, entityID))
	return nil
}

// BulkIndex adds or replaces multiple documents.
func (e *Engine) BulkIndex(_ context.Context, docs []domain.SearchDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range docs {
		e.docs[docs[i].ID()] = docs[i]
	}
	return nil
}

// Search executes a role-scoped query against the in-memory index.
func (e *Engine) Search(_ context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]domain.SearchDocument, 0)
	for _, d := range e.docs {
		if !visibleTo(&d, req.UserType, req.AccountID) {
			continue
		}
		if !matchesText(&d, req) {
			continue
		}
		if !matchesFilters(&d, req) {
			continue
		}
		matched = append(matched, d)
	}

	// Newest first; entity id breaks ties for a stable order.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].EntityID < matched[j].EntityID
	})

	aggs := &domain.Aggregations{
		EntityTypes: make(map[string]int64),
		Statuses:    make(map[string]int64),
	}
	for _, d := range matched {
		aggs.EntityTypes[d.EntityType]++
		if d.Status != "" {
			aggs.Statuses[d.Status]++
		}
	}

	total := len(matched)
	offset := (req.Page - 1) * req.Limit
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + req.Limit
	if end > total {
		end = total
	}

	return &domain.SearchResult{
		Results:      matched[offset:end],
		Total:        total,
		Page:         req.Page,
		Limit:        req.Limit,
		Pages:        domain.Pages(total, req.Limit),
		Aggregations: aggs,
	}, nil
}

// Suggest returns make/model values starting with the given prefix.
// Suggestions come only from the closed categorical vocabulary, never from
// free text, so autocomplete cannot leak permission-scoped content.
func (e *Engine) Suggest(_ context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	prefixLower := strings.ToLower(strings.TrimSpace(prefix))
	if prefixLower == "" {
		return []string{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range e.docs {
		for _, candidate := range []string{d.Make, d.Model} {
			if candidate == "" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(candidate), prefixLower) {
				seen[candidate] = struct{}{}
			}
		}
	}

	suggestions := make([]string, 0, len(seen))
	for s := range seen {
		suggestions = append(suggestions, s)
	}
	sort.Strings(suggestions)
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Stats computes the whole-index aggregate.
func (e *Engine) Stats(_ context.Context) (*domain.IndexStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &domain.IndexStats{
		TotalDocuments: int64(len(e.docs)),
		ByEntityType:   make(map[string]int64),
		ByStatus:       make(map[string]int64),
	}

	for _, d := range e.docs {
		stats.ByEntityType[d.EntityType]++
		if d.Status != "" {
			stats.ByStatus[d.Status]++
		}
		if d.EntityType == domain.EntityTypeOffer {
			p := d.Price
			if stats.Price.Count == 0 || p < stats.Price.Min {
				stats.Price.Min = p
			}
			if p > stats.Price.Max {
				stats.Price.Max = p
			}
			stats.Price.Sum += p
			stats.Price.Count++
		}
	}
	if stats.Price.Count > 0 {
		stats.Price.Avg = stats.Price.Sum / float64(stats.Price.Count)
	}

	return stats, nil
}

// visibleTo applies the per-role permission rules. Agents see everything;
// buyers additionally see every ACTIVE offer (the open marketplace).
func visibleTo(d *domain.SearchDocument, role domain.Role, accountID string) bool {
	switch role {
	case domain.RoleAgent:
		return true
	case domain.RoleSeller:
		return contains(d.Permissions.SellerIDs, accountID) || d.SellerID == accountID
	case domain.RoleBuyer:
		if contains(d.Permissions.BuyerIDs, accountID) || contains(d.Permissions.BuyerIDs, domain.AllBuyers) {
			return true
		}
		if d.BuyerID != "" && d.BuyerID == accountID {
			return true
		}
		return d.EntityType == domain.EntityTypeOffer && d.Status == domain.StatusActive
	case domain.RoleCarrier:
		return contains(d.Permissions.CarrierIDs, accountID) || (d.CarrierID != "" && d.CarrierID == accountID)
	}
	return false
}

// matchesText mirrors the union text query of the Elasticsearch engine:
// free text over searchable_text and location, exact match on make, model,
// and vin, or a vin substring.
func matchesText(d *domain.SearchDocument, req *domain.SearchRequest) bool {
	if req.MatchAll() {
		return true
	}
	text := req.NormalizedText()

	if strings.Contains(d.SearchableText, text) {
		return true
	}
	if d.Location != "" && strings.Contains(strings.ToLower(d.Location), text) {
		return true
	}
	if d.Make != "" && strings.EqualFold(d.Make, text) {
		return true
	}
	if d.Model != "" && strings.EqualFold(d.Model, text) {
		return true
	}
	if d.VIN != "" {
		vinLower := strings.ToLower(d.VIN)
		if vinLower == text || strings.Contains(vinLower, text) {
			return true
		}
	}
	return false
}

// matchesFilters applies the structured AND-ed filters.
func matchesFilters(d *domain.SearchDocument, req *domain.SearchRequest) bool {
	if len(req.EntityTypes) > 0 && !contains(req.EntityTypes, d.EntityType) {
		return false
	}
	if req.Status != "" && d.Status != req.Status {
		return false
	}
	if req.Make != "" && !strings.EqualFold(d.Make, req.Make) {
		return false
	}
	if req.Model != "" && !strings.EqualFold(d.Model, req.Model) {
		return false
	}
	if req.Location != "" && !strings.Contains(strings.ToLower(d.Location), strings.ToLower(req.Location)) {
		return false
	}
	if req.MinYear != nil && d.Year < *req.MinYear {
		return false
	}
	if req.MaxYear != nil && d.Year > *req.MaxYear {
		return false
	}
	if req.MinPrice != nil && d.Price < *req.MinPrice {
		return false
	}
	if req.MaxPrice != nil && d.Price > *req.MaxPrice {
		return false
	}
	return true
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
