// Package upstream holds read-only clients for the three record services
// that own offers, purchases, and transports. This service never writes to
// them; their paginated listing APIs are walked only during a manual full
// reindex.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/pkg/httpclient"
)

// ListPage is one page of an upstream listing response.
type ListPage struct {
	Data       []json.RawMessage `json:"data"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// Source is a pageable listing of one entity type. Implemented by Client;
// tests substitute fakes.
type Source interface {
	EntityType() string
	ListPage(ctx context.Context, page, limit int) (*ListPage, error)
}

// Doer executes HTTP requests. Satisfied by both httpclient.Client and
// httpclient.CircuitBreakerClient, so callers choose whether listing calls
// go through a breaker.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client walks one upstream service's paginated listing endpoint.
type Client struct {
	http       Doer
	baseURL    string
	resource   string
	entityType string
}

// NewOfferClient creates a client for the offer service's listing API.
func NewOfferClient(baseURL string, hc Doer) *Client {
	return newClient(baseURL, "offers", domain.EntityTypeOffer, hc)
}

// NewPurchaseClient creates a client for the purchase service's listing API.
func NewPurchaseClient(baseURL string, hc Doer) *Client {
	return newClient(baseURL, "purchases", domain.EntityTypePurchase, hc)
}

// NewTransportClient creates a client for the transport service's listing API.
func NewTransportClient(baseURL string, hc Doer) *Client {
	return newClient(baseURL, "transports", domain.EntityTypeTransport, hc)
}

func newClient(baseURL, resource, entityType string, hc Doer) *Client {
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultConfig())
	}
	return &Client{
		http:       hc,
		baseURL:    baseURL,
		resource:   resource,
		entityType: entityType,
	}
}

// EntityType returns the entity type this client lists.
func (c *Client) EntityType() string {
	return c.entityType
}

// ListPage fetches one page of records from the upstream listing endpoint.
func (c *Client) ListPage(ctx context.Context, page, limit int) (*ListPage, error) {
	url := fmt.Sprintf("%s/api/v1/%s?page=%d&limit=%d", c.baseURL, c.resource, page, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s list request: %w", c.resource, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", c.resource, page, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(res, c.entityType+"-service")
	}

	var lp ListPage
	if err := json.NewDecoder(res.Body).Decode(&lp); err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", c.resource, page, err)
	}
	return &lp, nil
}
