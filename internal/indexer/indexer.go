// Package indexer transforms upstream entity payloads into denormalized
// search documents and writes them to the search index.
//
// The write path is the only writer of search documents. Every write is a
// full-document replace keyed by "<entityType>_<entityId>", so reprocessing
// a redelivered event converges to the same index state.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/autolane/search-service/internal/cache"
	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/internal/engine"
)

// ErrUnknownEntityType is returned for entity types outside the closed set.
var ErrUnknownEntityType = errors.New("indexer: unknown entity type")

// The consumer processes one message at a time per partition, so every
// outbound write carries its own deadline; without one a hung index store
// connection would stall the partition indefinitely.
const (
	writeTimeout      = 10 * time.Second
	invalidateTimeout = 5 * time.Second
)

var (
	documentsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_documents_indexed_total",
			Help: "Total number of documents upserted into the search index",
		},
		[]string{"entity_type"},
	)

	documentsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_documents_deleted_total",
			Help: "Total number of documents removed from the search index",
		},
		[]string{"entity_type"},
	)

	cacheInvalidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_invalidation_failures_total",
			Help: "Total number of cache invalidation attempts that failed",
		},
	)
)

// Indexer builds search documents from entity payloads and upserts them.
type Indexer struct {
	engine engine.SearchEngine
	store  cache.Store
	logger *slog.Logger
}

// New creates a new document indexer.
func New(eng engine.SearchEngine, store cache.Store, logger *slog.Logger) *Indexer {
	return &Indexer{
		engine: eng,
		store:  store,
		logger: logger,
	}
}

// IndexEntity transforms the raw payload for the given entity type into a
// search document and upserts it. The index write happens before cache
// invalidation; a failed invalidation is logged and swallowed, because
// serving a cached response for up to one TTL window is the accepted
// degradation.
func (ix *Indexer) IndexEntity(ctx context.Context, entityType, entityID string, payload json.RawMessage) error {
	doc, err := BuildDocument(entityType, entityID, payload)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := ix.engine.Index(wctx, doc); err != nil {
		return fmt.Errorf("index %s %s: %w", entityType, entityID, err)
	}
	documentsIndexed.WithLabelValues(entityType).Inc()

	ix.invalidate(ctx)
	return nil
}

// DeleteEntity removes an entity's document from the index.
func (ix *Indexer) DeleteEntity(ctx context.Context, entityType, entityID string) error {
	if !domain.IsKnownEntityType(entityType) {
		return fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := ix.engine.Delete(wctx, entityType, entityID); err != nil {
		return fmt.Errorf("delete %s %s: %w", entityType, entityID, err)
	}
	documentsDeleted.WithLabelValues(entityType).Inc()

	ix.invalidate(ctx)
	return nil
}

// BulkIndex upserts a batch of already-built documents in one round trip
// and invalidates the query cache once. Used by the reindex walker.
func (ix *Indexer) BulkIndex(ctx context.Context, docs []domain.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := ix.engine.BulkIndex(wctx, docs); err != nil {
		return fmt.Errorf("bulk index %d documents: %w", len(docs), err)
	}
	for i := range docs {
		documentsIndexed.WithLabelValues(docs[i].EntityType).Inc()
	}

	ix.invalidate(ctx)
	return nil
}

// invalidate purges cached query responses that may include the written
// entity. Failures are logged and swallowed per the degradation policy.
func (ix *Indexer) invalidate(ctx context.Context) {
	ictx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()

	if err := cache.InvalidateQueries(ictx, ix.store); err != nil {
		cacheInvalidationFailures.Inc()
		ix.logger.WarnContext(ctx, "cache invalidation failed, stale results possible until TTL",
			slog.String("error", err.Error()),
		)
	}
}

// BuildDocument dispatches on the entity type discriminant and builds the
// matching document variant. The switch is exhaustive over the closed set
// of entity types.
func BuildDocument(entityType, entityID string, payload json.RawMessage) (*domain.SearchDocument, error) {
	switch entityType {
	case domain.EntityTypeOffer:
		var p domain.OfferPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal offer payload: %w", err)
		}
		return OfferDocument(entityID, &p), nil

	case domain.EntityTypePurchase:
		var p domain.PurchasePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal purchase payload: %w", err)
		}
		return PurchaseDocument(entityID, &p), nil

	case domain.EntityTypeTransport:
		var p domain.TransportPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal transport payload: %w", err)
		}
		return TransportDocument(entityID, &p), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
}

// OfferDocument builds the search document for an offer. The searchable
// text includes the "<year> <make> <model>" and "<make> <model>" convenience
// combinations so compound queries match without per-type query branching.
// Buyer visibility uses the AllBuyers sentinel while the offer is ACTIVE.
func OfferDocument(entityID string, p *domain.OfferPayload) *domain.SearchDocument {
	year := ""
	if p.Year > 0 {
		year = strconv.Itoa(p.Year)
	}

	buyerIDs := []string{}
	if p.Status == domain.StatusActive {
		buyerIDs = []string{domain.AllBuyers}
	}

	return &domain.SearchDocument{
		EntityType: domain.EntityTypeOffer,
		EntityID:   entityID,
		Status:     p.Status,
		SearchableText: searchableText(
			p.VIN,
			p.Make,
			p.Model,
			year,
			joinNonEmpty(year, p.Make, p.Model),
			joinNonEmpty(p.Make, p.Model),
			p.Location,
			p.Condition,
			p.Status,
			p.Description,
		),
		Permissions: domain.Permissions{
			SellerIDs:  []string{p.SellerID},
			BuyerIDs:   buyerIDs,
			CarrierIDs: []string{},
		},
		CreatedAt: timestampOrNow(p.CreatedAt),
		UpdatedAt: timestampOrNow(p.UpdatedAt),
		VIN:       p.VIN,
		SellerID:  p.SellerID,
		Make:      p.Make,
		Model:     p.Model,
		Year:      p.Year,
		Price:     p.Price,
		Location:  p.Location,
		Condition: p.Condition,
	}
}

// PurchaseDocument builds the search document for a purchase. Visibility is
// restricted to the exact buyer and seller.
func PurchaseDocument(entityID string, p *domain.PurchasePayload) *domain.SearchDocument {
	return &domain.SearchDocument{
		EntityType: domain.EntityTypePurchase,
		EntityID:   entityID,
		Status:     p.Status,
		SearchableText: searchableText(
			entityID,
			p.VIN,
			p.OfferID,
			p.PaymentMethod,
			p.Status,
		),
		Permissions: domain.Permissions{
			SellerIDs:  []string{p.SellerID},
			BuyerIDs:   []string{p.BuyerID},
			CarrierIDs: []string{},
		},
		CreatedAt:     timestampOrNow(p.CreatedAt),
		UpdatedAt:     timestampOrNow(p.UpdatedAt),
		VIN:           p.VIN,
		SellerID:      p.SellerID,
		BuyerID:       p.BuyerID,
		OfferID:       p.OfferID,
		PurchasePrice: p.PurchasePrice,
		PaymentMethod: p.PaymentMethod,
	}
}

// TransportDocument builds the search document for a transport. Visibility
// is restricted to the exact carrier and buyer.
func TransportDocument(entityID string, p *domain.TransportPayload) *domain.SearchDocument {
	return &domain.SearchDocument{
		EntityType: domain.EntityTypeTransport,
		EntityID:   entityID,
		Status:     p.Status,
		SearchableText: searchableText(
			entityID,
			p.OfferID,
			p.PurchaseID,
			p.PickupLocation,
			p.DeliveryLocation,
			joinNonEmpty(p.PickupLocation, p.DeliveryLocation),
			p.Status,
		),
		Permissions: domain.Permissions{
			SellerIDs:  []string{},
			BuyerIDs:   []string{p.BuyerID},
			CarrierIDs: []string{p.CarrierID},
		},
		CreatedAt:             timestampOrNow(p.CreatedAt),
		UpdatedAt:             timestampOrNow(p.UpdatedAt),
		BuyerID:               p.BuyerID,
		OfferID:               p.OfferID,
		CarrierID:             p.CarrierID,
		PurchaseID:            p.PurchaseID,
		TransportCost:         p.TransportCost,
		PickupLocation:        p.PickupLocation,
		DeliveryLocation:      p.DeliveryLocation,
		ScheduledPickupDate:   p.ScheduledPickupDate,
		ScheduledDeliveryDate: p.ScheduledDeliveryDate,
	}
}

// searchableText lowercases and space-joins the non-empty parts into the
// denormalized text blob.
func searchableText(parts ...string) string {
	return strings.ToLower(joinNonEmpty(parts...))
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
