package domain

import (
	"encoding/json"
	"time"
)

// Event type verbs emitted by the upstream record services. The full event
// type on the wire is "<Entity><Verb>", e.g. "OfferCreated".
const (
	EventVerbCreated = "Created"
	EventVerbUpdated = "Updated"
	EventVerbDeleted = "Deleted"
)

// ChangeEvent is the envelope emitted by upstream services on entity
// creation, update, and deletion. The payload shape is discriminated by
// EntityType.
type ChangeEvent struct {
	EventType  string          `json:"eventType"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// IsDeletion reports whether the event removes the entity from the index.
func (e *ChangeEvent) IsDeletion() bool {
	return len(e.EventType) >= len(EventVerbDeleted) &&
		e.EventType[len(e.EventType)-len(EventVerbDeleted):] == EventVerbDeleted
}

// OfferPayload is the offer entity shape carried by offer change events and
// returned by the offer service's listing API.
type OfferPayload struct {
	SellerID    string    `json:"sellerId"`
	VIN         string    `json:"vin"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PurchasePayload is the purchase entity shape carried by purchase change
// events and returned by the purchase service's listing API.
type PurchasePayload struct {
	SellerID      string    `json:"sellerId"`
	BuyerID       string    `json:"buyerId"`
	OfferID       string    `json:"offerId"`
	VIN           string    `json:"vin"`
	PurchasePrice float64   `json:"purchasePrice"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TransportPayload is the transport entity shape carried by transport change
// events and returned by the transport service's listing API.
type TransportPayload struct {
	CarrierID             string    `json:"carrierId"`
	BuyerID               string    `json:"buyerId"`
	OfferID               string    `json:"offerId"`
	PurchaseID            string    `json:"purchaseId"`
	TransportCost         float64   `json:"transportCost"`
	PickupLocation        string    `json:"pickupLocation"`
	DeliveryLocation      string    `json:"deliveryLocation"`
	ScheduledPickupDate   string    `json:"scheduledPickupDate"`
	ScheduledDeliveryDate string    `json:"scheduledDeliveryDate"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}
