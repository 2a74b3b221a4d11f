package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolane/search-service/internal/domain"
)

func newOffer(id, sellerID, mk, model string, year int, price float64, status string) domain.SearchDocument {
	now := time.Now().UTC()
	buyerIDs := []string{}
	if status == domain.StatusActive {
		buyerIDs = []string{domain.AllBuyers}
	}
	return domain.SearchDocument{
		EntityType:     domain.EntityTypeOffer,
		EntityID:       id,
		Status:         status,
		SearchableText: strings.ToLower(fmt.Sprintf("vin%s %s %s %d berlin", id, mk, model, year)),
		Permissions: domain.Permissions{
			SellerIDs:  []string{sellerID},
			BuyerIDs:   buyerIDs,
			CarrierIDs: []string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
		VIN:       "VIN" + id,
		SellerID:  sellerID,
		Make:      mk,
		Model:     model,
		Year:      year,
		Price:     price,
		Location:  "Berlin",
		Condition: "USED",
	}
}

func newPurchase(id, sellerID, buyerID string) domain.SearchDocument {
	now := time.Now().UTC()
	return domain.SearchDocument{
		EntityType:     domain.EntityTypePurchase,
		EntityID:       id,
		Status:         "COMPLETED",
		SearchableText: fmt.Sprintf("%s vin%s completed", id, id),
		Permissions: domain.Permissions{
			SellerIDs:  []string{sellerID},
			BuyerIDs:   []string{buyerID},
			CarrierIDs: []string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
		VIN:       "VIN" + id,
		SellerID:  sellerID,
		BuyerID:   buyerID,
	}
}

func newTransport(id, carrierID, buyerID string) domain.SearchDocument {
	now := time.Now().UTC()
	return domain.SearchDocument{
		EntityType:     domain.EntityTypeTransport,
		EntityID:       id,
		Status:         "SCHEDULED",
		SearchableText: fmt.Sprintf("%s hamburg munich scheduled", id),
		Permissions: domain.Permissions{
			SellerIDs:  []string{},
			BuyerIDs:   []string{buyerID},
			CarrierIDs: []string{carrierID},
		},
		CreatedAt:        now,
		UpdatedAt:        now,
		BuyerID:          buyerID,
		CarrierID:        carrierID,
		PickupLocation:   "Hamburg",
		DeliveryLocation: "Munich",
	}
}

func agentRequest(text string) *domain.SearchRequest {
	return &domain.SearchRequest{
		UserType:   domain.RoleAgent,
		SearchText: text,
		Page:       1,
		Limit:      20,
	}
}

func TestEngine_Index_ThenSearch(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &doc))

	result, err := eng.Search(ctx, agentRequest("bmw"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "o1", result.Results[0].EntityID)
}

func TestEngine_Index_ReplacesWholeDocument(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &doc))

	updated := newOffer("o1", "s1", "Audi", "A4", 2021, 38000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &updated))

	// Only one document remains under the id, and the old make is gone.
	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "Audi", result.Results[0].Make)

	noMatch, err := eng.Search(ctx, agentRequest("bmw"))
	require.NoError(t, err)
	assert.Equal(t, 0, noMatch.Total)
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &doc))
	require.NoError(t, eng.Delete(ctx, domain.EntityTypeOffer, "o1"))

	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestEngine_Delete_MissingDocumentIsNoOp(t *testing.T) {
	ctx := context.Background()
	eng := New()

	assert.NoError(t, eng.Delete(ctx, domain.EntityTypeOffer, "never-indexed"))
}

func TestEngine_Search_SellerSeesOnlyOwnDocuments(t *testing.T) {
	ctx := context.Background()
	eng := New()

	mine := newOffer("o1", "seller-a", "BMW", "X5", 2020, 45000, domain.StatusActive)
	other := newOffer("o2", "seller-b", "BMW", "X3", 2019, 35000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &mine))
	require.NoError(t, eng.Index(ctx, &other))

	result, err := eng.Search(ctx, &domain.SearchRequest{
		UserType:   domain.RoleSeller,
		AccountID:  "seller-a",
		SearchText: "*",
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "o1", result.Results[0].EntityID)
}

func TestEngine_Search_BuyerSeesActiveOffersFromAnySeller(t *testing.T) {
	ctx := context.Background()
	eng := New()

	active := newOffer("o1", "seller-a", "BMW", "X5", 2020, 45000, domain.StatusActive)
	sold := newOffer("o2", "seller-a", "BMW", "X3", 2019, 35000, "SOLD")
	require.NoError(t, eng.Index(ctx, &active))
	require.NoError(t, eng.Index(ctx, &sold))

	result, err := eng.Search(ctx, &domain.SearchRequest{
		UserType:   domain.RoleBuyer,
		AccountID:  "buyer-1",
		SearchText: "*",
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "o1", result.Results[0].EntityID)
}

func TestEngine_Search_BuyerSeesOwnPurchases(t *testing.T) {
	ctx := context.Background()
	eng := New()

	mine := newPurchase("p1", "seller-a", "buyer-1")
	other := newPurchase("p2", "seller-a", "buyer-2")
	require.NoError(t, eng.Index(ctx, &mine))
	require.NoError(t, eng.Index(ctx, &other))

	result, err := eng.Search(ctx, &domain.SearchRequest{
		UserType:   domain.RoleBuyer,
		AccountID:  "buyer-1",
		SearchText: "*",
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "p1", result.Results[0].EntityID)
}

func TestEngine_Search_CarrierSeesOnlyOwnTransports(t *testing.T) {
	ctx := context.Background()
	eng := New()

	offer := newOffer("o1", "seller-a", "BMW", "X5", 2020, 45000, domain.StatusActive)
	mine := newTransport("t1", "carrier-1", "buyer-1")
	other := newTransport("t2", "carrier-2", "buyer-1")
	require.NoError(t, eng.Index(ctx, &offer))
	require.NoError(t, eng.Index(ctx, &mine))
	require.NoError(t, eng.Index(ctx, &other))

	result, err := eng.Search(ctx, &domain.SearchRequest{
		UserType:   domain.RoleCarrier,
		AccountID:  "carrier-1",
		SearchText: "*",
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "t1", result.Results[0].EntityID)
}

func TestEngine_Search_AgentSeesEverything(t *testing.T) {
	ctx := context.Background()
	eng := New()

	offer := newOffer("o1", "seller-a", "BMW", "X5", 2020, 45000, "SOLD")
	purchase := newPurchase("p1", "seller-a", "buyer-1")
	transport := newTransport("t1", "carrier-1", "buyer-1")
	require.NoError(t, eng.Index(ctx, &offer))
	require.NoError(t, eng.Index(ctx, &purchase))
	require.NoError(t, eng.Index(ctx, &transport))

	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

func TestEngine_Search_UnknownRoleMatchesNothing(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &doc))

	result, err := eng.Search(ctx, &domain.SearchRequest{
		UserType:   domain.Role("ADMIN"),
		AccountID:  "a1",
		SearchText: "*",
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestEngine_Search_VINExactAndSubstring(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	doc.VIN = "WBA12345678901234"
	require.NoError(t, eng.Index(ctx, &doc))

	exact, err := eng.Search(ctx, agentRequest("wba12345678901234"))
	require.NoError(t, err)
	assert.Equal(t, 1, exact.Total)

	partial, err := eng.Search(ctx, agentRequest("2345678"))
	require.NoError(t, err)
	assert.Equal(t, 1, partial.Total)
}

func TestEngine_Search_FiltersAreANDed(t *testing.T) {
	ctx := context.Background()
	eng := New()

	bmw := newOffer("o1", "s1", "BMW", "X5", 2020, 45000, domain.StatusActive)
	audi := newOffer("o2", "s1", "Audi", "A4", 2020, 38000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &bmw))
	require.NoError(t, eng.Index(ctx, &audi))

	minPrice := 40000.0
	req := agentRequest("*")
	req.Make = "bmw"
	req.MinPrice = &minPrice

	result, err := eng.Search(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "o1", result.Results[0].EntityID)

	// Tightening the price range excludes the remaining match.
	minPrice = 50000.0
	result, err = eng.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestEngine_Search_YearRange(t *testing.T) {
	ctx := context.Background()
	eng := New()

	for i, year := range []int{2015, 2018, 2021} {
		doc := newOffer(fmt.Sprintf("o%d", i), "s1", "BMW", "X5", year, 40000, domain.StatusActive)
		require.NoError(t, eng.Index(ctx, &doc))
	}

	minYear, maxYear := 2016, 2020
	req := agentRequest("*")
	req.MinYear = &minYear
	req.MaxYear = &maxYear

	result, err := eng.Search(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, 2018, result.Results[0].Year)
}

func TestEngine_Search_PaginationMath(t *testing.T) {
	ctx := context.Background()
	eng := New()

	for i := 0; i < 47; i++ {
		doc := newOffer(fmt.Sprintf("o%02d", i), "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
		require.NoError(t, eng.Index(ctx, &doc))
	}

	page1, err := eng.Search(ctx, &domain.SearchRequest{
		UserType: domain.RoleAgent, SearchText: "*", Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 47, page1.Total)
	assert.Equal(t, 3, page1.Pages)
	assert.Len(t, page1.Results, 20)

	page3, err := eng.Search(ctx, &domain.SearchRequest{
		UserType: domain.RoleAgent, SearchText: "*", Page: 3, Limit: 20,
	})
	require.NoError(t, err)
	assert.Len(t, page3.Results, 7)

	// A page past the end is a valid empty page, not an error.
	page4, err := eng.Search(ctx, &domain.SearchRequest{
		UserType: domain.RoleAgent, SearchText: "*", Page: 4, Limit: 20,
	})
	require.NoError(t, err)
	assert.Empty(t, page4.Results)
	assert.Equal(t, 47, page4.Total)
}

func TestEngine_Search_SortedNewestFirst(t *testing.T) {
	ctx := context.Background()
	eng := New()

	old := newOffer("o1", "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
	old.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := newOffer("o2", "s1", "BMW", "X3", 2021, 42000, domain.StatusActive)
	recent.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, eng.Index(ctx, &old))
	require.NoError(t, eng.Index(ctx, &recent))

	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	assert.Equal(t, "o2", result.Results[0].EntityID)
	assert.Equal(t, "o1", result.Results[1].EntityID)
}

func TestEngine_Search_Aggregations(t *testing.T) {
	ctx := context.Background()
	eng := New()

	offer := newOffer("o1", "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
	purchase := newPurchase("p1", "s1", "b1")
	require.NoError(t, eng.Index(ctx, &offer))
	require.NoError(t, eng.Index(ctx, &purchase))

	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	require.NotNil(t, result.Aggregations)
	assert.Equal(t, int64(1), result.Aggregations.EntityTypes[domain.EntityTypeOffer])
	assert.Equal(t, int64(1), result.Aggregations.EntityTypes[domain.EntityTypePurchase])
	assert.Equal(t, int64(1), result.Aggregations.Statuses[domain.StatusActive])
}

func TestEngine_BulkIndex(t *testing.T) {
	ctx := context.Background()
	eng := New()

	docs := []domain.SearchDocument{
		newOffer("o1", "s1", "BMW", "X5", 2020, 40000, domain.StatusActive),
		newOffer("o2", "s1", "Audi", "A4", 2021, 38000, domain.StatusActive),
	}
	require.NoError(t, eng.BulkIndex(ctx, docs))

	result, err := eng.Search(ctx, agentRequest("*"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestEngine_Suggest(t *testing.T) {
	ctx := context.Background()
	eng := New()

	x5 := newOffer("o1", "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
	x3 := newOffer("o2", "s1", "BMW", "X3", 2019, 35000, domain.StatusActive)
	audi := newOffer("o3", "s1", "Audi", "A4", 2021, 38000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &x5))
	require.NoError(t, eng.Index(ctx, &x3))
	require.NoError(t, eng.Index(ctx, &audi))

	suggestions, err := eng.Suggest(ctx, "bm", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"BMW"}, suggestions)

	suggestions, err = eng.Suggest(ctx, "x", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"X3", "X5"}, suggestions)
}

func TestEngine_Suggest_DeduplicatesAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	eng := New()

	for i := 0; i < 5; i++ {
		doc := newOffer(fmt.Sprintf("o%d", i), "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
		require.NoError(t, eng.Index(ctx, &doc))
	}

	suggestions, err := eng.Suggest(ctx, "bmw", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"BMW"}, suggestions)
}

func TestEngine_Suggest_EmptyPrefix(t *testing.T) {
	ctx := context.Background()
	eng := New()

	doc := newOffer("o1", "s1", "BMW", "X5", 2020, 40000, domain.StatusActive)
	require.NoError(t, eng.Index(ctx, &doc))

	suggestions, err := eng.Suggest(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestEngine_Stats(t *testing.T) {
	ctx := context.Background()
	eng := New()

	cheap := newOffer("o1", "s1", "BMW", "X3", 2019, 30000, domain.StatusActive)
	pricey := newOffer("o2", "s1", "BMW", "X5", 2021, 50000, "SOLD")
	purchase := newPurchase("p1", "s1", "b1")
	require.NoError(t, eng.Index(ctx, &cheap))
	require.NoError(t, eng.Index(ctx, &pricey))
	require.NoError(t, eng.Index(ctx, &purchase))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalDocuments)
	assert.Equal(t, int64(2), stats.ByEntityType[domain.EntityTypeOffer])
	assert.Equal(t, int64(1), stats.ByEntityType[domain.EntityTypePurchase])
	assert.Equal(t, 30000.0, stats.Price.Min)
	assert.Equal(t, 50000.0, stats.Price.Max)
	assert.Equal(t, 40000.0, stats.Price.Avg)
	assert.Equal(t, int64(2), stats.Price.Count)
}
