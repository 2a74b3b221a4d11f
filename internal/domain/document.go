package domain

import (
	"fmt"
	"time"
)

// Entity types indexed into the global search collection.
const (
	EntityTypeOffer     = "offer"
	EntityTypePurchase  = "purchase"
	EntityTypeTransport = "transport"
)

// StatusActive marks an offer as visible on the open marketplace.
const StatusActive = "ACTIVE"

// AllBuyers is the permission sentinel meaning "visible to every buyer".
const AllBuyers = "*"

// KnownEntityTypes returns the closed set of entity types this service indexes.
func KnownEntityTypes() []string {
	return []string{EntityTypeOffer, EntityTypePurchase, EntityTypeTransport}
}

// IsKnownEntityType checks whether the given entity type is one this service indexes.
func IsKnownEntityType(entityType string) bool {
	for _, t := range KnownEntityTypes() {
		if t == entityType {
			return true
		}
	}
	return false
}

// Permissions lists which seller/buyer/carrier account ids may view a document.
// BuyerIDs may hold the AllBuyers sentinel for marketplace-visible offers.
type Permissions struct {
	SellerIDs  []string `json:"seller_ids"`
	BuyerIDs   []string `json:"buyer_ids"`
	CarrierIDs []string `json:"carrier_ids"`
}

// SearchDocument is the denormalized representation of one upstream entity
// as stored in the search index. Common fields are always populated; the
// entity-specific fields are set for the matching EntityType only.
type SearchDocument struct {
	EntityType     string      `json:"entity_type"`
	EntityID       string      `json:"entity_id"`
	Status         string      `json:"status"`
	SearchableText string      `json:"searchable_text"`
	Permissions    Permissions `json:"permissions"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// Offer fields.
	VIN       string  `json:"vin,omitempty"`
	SellerID  string  `json:"seller_id,omitempty"`
	Make      string  `json:"make,omitempty"`
	Model     string  `json:"model,omitempty"`
	Year      int     `json:"year,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Location  string  `json:"location,omitempty"`
	Condition string  `json:"condition,omitempty"`

	// Purchase fields.
	BuyerID       string  `json:"buyer_id,omitempty"`
	OfferID       string  `json:"offer_id,omitempty"`
	PurchasePrice float64 `json:"purchase_price,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`

	// Transport fields.
	CarrierID             string  `json:"carrier_id,omitempty"`
	PurchaseID            string  `json:"purchase_id,omitempty"`
	TransportCost         float64 `json:"transport_cost,omitempty"`
	PickupLocation        string  `json:"pickup_location,omitempty"`
	DeliveryLocation      string  `json:"delivery_location,omitempty"`
	ScheduledPickupDate   string  `json:"scheduled_pickup_date,omitempty"`
	ScheduledDeliveryDate string  `json:"scheduled_delivery_date,omitempty"`
}

// DocumentID returns the index document id for an entity. Re-indexing the
// same entity always targets the same id, which is what makes indexing
// idempotent under event redelivery.
func DocumentID(entityType, entityID string) string {
	return fmt.Sprintf("%s_%s", entityType, entityID)
}

// ID returns the document's index id.
func (d *SearchDocument) ID() string {
	return DocumentID(d.EntityType, d.EntityID)
}
