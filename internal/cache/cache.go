// Package cache provides the read-through query cache for search responses.
//
// Keys are deterministic fingerprints over (role, account id, normalized
// search text, filter set). Multi-tenant isolation is enforced by key
// construction alone: two requests differing only in role or account id can
// never produce the same key, so a cached payload can never be served across
// the tenancy boundary.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/autolane/search-service/internal/domain"
)

// QueryKeyPrefix is the namespace for cached search responses. Invalidation
// purges keys matching this namespace with a wildcard.
const QueryKeyPrefix = "search:q:"

// DefaultTTL caps how stale a cached search response may be served when
// invalidation is never triggered.
const DefaultTTL = 300 * time.Second

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a key/value store with TTL and wildcard deletion, backed by
// Redis in production and an in-memory map in tests and development.
type Store interface {
	// Get returns the value for the key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value under the key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePattern removes every key matching the glob-style pattern.
	DeletePattern(ctx context.Context, pattern string) error

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// QueryKey returns the deterministic cache key for a search request.
// The role and account id are hashed together with the normalized text and
// the canonical filter set; "agent" requests use a fixed account marker.
func QueryKey(req *domain.SearchRequest) string {
	account := req.AccountID
	if req.UserType == domain.RoleAgent {
		account = "agent"
	}

	parts := []string{
		string(req.UserType),
		account,
		req.NormalizedText(),
		canonicalFilters(req),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return QueryKeyPrefix + hex.EncodeToString(sum[:])
}

// canonicalFilters serializes the structured filters in a fixed field order
// so logically identical requests always hash to the same key.
func canonicalFilters(req *domain.SearchRequest) string {
	entityTypes := append([]string(nil), req.EntityTypes...)
	sort.Strings(entityTypes)

	fields := []string{
		"types=" + strings.Join(entityTypes, ","),
		"status=" + req.Status,
		"make=" + strings.ToLower(req.Make),
		"model=" + strings.ToLower(req.Model),
		"location=" + strings.ToLower(req.Location),
		"min_year=" + intOrEmpty(req.MinYear),
		"max_year=" + intOrEmpty(req.MaxYear),
		"min_price=" + floatOrEmpty(req.MinPrice),
		"max_price=" + floatOrEmpty(req.MaxPrice),
		"page=" + strconv.Itoa(req.Page),
		"limit=" + strconv.Itoa(req.Limit),
	}
	return strings.Join(fields, "&")
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatOrEmpty(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// InvalidateQueries purges the whole cached-query namespace. The upstream
// tag set (owner id, VIN, and the rest of an entity's identifying
// attributes) cannot be mapped onto hashed keys, so the wildcard covers the
// entire namespace: the coarsest safe form of tag invalidation, trading
// extra cache misses for never serving a response that includes stale
// documents.
func InvalidateQueries(ctx context.Context, store Store) error {
	if err := store.DeletePattern(ctx, QueryKeyPrefix+"*"); err != nil {
		return fmt.Errorf("invalidate query cache: %w", err)
	}
	return nil
}
