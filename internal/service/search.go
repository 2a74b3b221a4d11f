package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/autolane/search-service/internal/cache"
	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/internal/engine"
	"github.com/autolane/search-service/internal/indexer"
	"github.com/autolane/search-service/internal/upstream"
	apperrors "github.com/autolane/search-service/pkg/errors"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_cache_hits_total",
		Help: "Total number of search responses served from the cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_cache_misses_total",
		Help: "Total number of search requests that missed the cache",
	})

	searchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_query_errors_total",
		Help: "Total number of search executions that failed and degraded to an empty result",
	})
)

// SearchService implements the role-scoped search, autocomplete, stats, and
// reindex operations on top of a search engine and a query cache.
type SearchService struct {
	engine  engine.SearchEngine
	indexer *indexer.Indexer
	store   cache.Store
	ttl     time.Duration
	sources []upstream.Source
	logger  *slog.Logger
}

// NewSearchService creates a new search service. The sources are the
// upstream listing clients walked during a full reindex; ttl governs how
// long query responses stay cached.
func NewSearchService(
	eng engine.SearchEngine,
	ix *indexer.Indexer,
	store cache.Store,
	ttl time.Duration,
	sources []upstream.Source,
	logger *slog.Logger,
) *SearchService {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &SearchService{
		engine:  eng,
		indexer: ix,
		store:   store,
		ttl:     ttl,
		sources: sources,
		logger:  logger,
	}
}

// Search validates the request, then answers it through the read-through
// cache. Request-shape failures (invalid role, missing account id for a
// scoped role) are real errors; backend failures degrade to an empty,
// well-formed result so the read path never hard-fails on an unreachable
// index.
func (s *SearchService) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Normalize()

	key := cache.QueryKey(req)

	if cached := s.cachedResult(ctx, key); cached != nil {
		cacheHits.Inc()
		return cached, nil
	}
	cacheMisses.Inc()

	result, err := s.engine.Search(ctx, req)
	if err != nil {
		searchErrors.Inc()
		s.logger.ErrorContext(ctx, "search failed, returning empty result",
			slog.String("role", string(req.UserType)),
			slog.String("error", err.Error()),
		)
		return domain.EmptyResult(req), nil
	}

	s.cacheResult(ctx, key, result)

	s.logger.DebugContext(ctx, "search executed",
		slog.String("role", string(req.UserType)),
		slog.String("text", req.NormalizedText()),
		slog.Int("total", result.Total),
	)
	return result, nil
}

// validateRequest enforces the authorization shape: every role but AGENT
// must carry an account id. A missing account id is a hard error, never a
// silent fall-through to an unscoped query.
func validateRequest(req *domain.SearchRequest) error {
	if !req.UserType.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("unknown userType %q", req.UserType))
	}
	if req.UserType != domain.RoleAgent && req.AccountID == "" {
		return apperrors.InvalidInput(fmt.Sprintf("accountId is required for userType %s", req.UserType))
	}
	return nil
}

func (s *SearchService) cachedResult(ctx context.Context, key string) *domain.SearchResult {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.WarnContext(ctx, "cache read failed, falling through to index",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var cached domain.SearchResult
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable cache entry",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &cached
}

func (s *SearchService) cacheResult(ctx context.Context, key string, result *domain.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "cache write failed",
			slog.String("error", err.Error()),
		)
	}
}

// Suggest returns deduplicated prefix suggestions. Backend failures degrade
// to an empty list; autocomplete is never worth an error page.
func (s *SearchService) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	suggestions, err := s.engine.Suggest(ctx, prefix, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "suggest failed, returning no suggestions",
			slog.String("error", err.Error()),
		)
		return []string{}, nil
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

// Stats returns the unscoped whole-index aggregate.
func (s *SearchService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	return stats, nil
}

// IndexEntity upserts one entity document. Operator surface mirroring the
// event-driven path.
func (s *SearchService) IndexEntity(ctx context.Context, entityType, entityID string, payload json.RawMessage) error {
	if entityID == "" {
		return apperrors.InvalidInput("entityId is required")
	}
	if err := s.indexer.IndexEntity(ctx, entityType, entityID, payload); err != nil {
		if errors.Is(err, indexer.ErrUnknownEntityType) {
			return apperrors.InvalidInput(err.Error())
		}
		return err
	}
	s.logger.InfoContext(ctx, "entity indexed",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
	)
	return nil
}

// EntityRef identifies one upstream entity together with its raw payload.
type EntityRef struct {
	EntityType string
	EntityID   string
	Payload    json.RawMessage
}

// BulkIndexEntities converts a batch of entities into documents and writes
// them in one bulk request. The whole batch is rejected if any item cannot
// be converted, so a partial write never masks a bad payload.
func (s *SearchService) BulkIndexEntities(ctx context.Context, items []EntityRef) error {
	docs := make([]domain.SearchDocument, 0, len(items))
	for i, item := range items {
		doc, err := indexer.BuildDocument(item.EntityType, item.EntityID, item.Payload)
		if err != nil {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: %v", i, err))
		}
		docs = append(docs, *doc)
	}
	if err := s.indexer.BulkIndex(ctx, docs); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "bulk indexed entities", slog.Int("count", len(docs)))
	return nil
}

// DeleteEntity removes one entity document from the index.
func (s *SearchService) DeleteEntity(ctx context.Context, entityType, entityID string) error {
	if entityID == "" {
		return apperrors.InvalidInput("entityId is required")
	}
	if err := s.indexer.DeleteEntity(ctx, entityType, entityID); err != nil {
		if errors.Is(err, indexer.ErrUnknownEntityType) {
			return apperrors.InvalidInput(err.Error())
		}
		return err
	}
	s.logger.InfoContext(ctx, "entity deleted from index",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
	)
	return nil
}
