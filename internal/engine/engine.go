package engine

import (
	"context"

	"github.com/autolane/search-service/internal/domain"
)

// SearchEngine defines the interface for the global search index.
// Implementations may use Elasticsearch or in-memory storage; both must
// treat Index as a full-document replace keyed by the document id so that
// re-indexing the same entity is idempotent.
type SearchEngine interface {
	// Index adds or fully replaces a single document in the index.
	Index(ctx context.Context, doc *domain.SearchDocument) error

	// Delete removes a document by entity type and entity id. Deleting a
	// document that does not exist is not an error.
	Delete(ctx context.Context, entityType, entityID string) error

	// BulkIndex adds or replaces multiple documents in one round trip.
	BulkIndex(ctx context.Context, docs []domain.SearchDocument) error

	// Search executes a role-scoped query. The request is assumed to be
	// validated and normalized by the caller.
	Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error)

	// Suggest returns deduplicated autocomplete suggestions for a prefix.
	// Only closed-vocabulary categorical values (make, model) are suggested.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)

	// Stats returns the unscoped operational aggregate over the whole index.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}
