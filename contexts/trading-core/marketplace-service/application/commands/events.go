package commands

import (
	"encoding/json"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

const (
	TokenRegisteredEventType  = "marketplace.token_registered"
	TokenPurchasedEventType   = "marketplace.token_purchased"
	ListingCancelledEventType = "marketplace.listing_cancelled"

	eventSourceService = "tokenmart"
	eventSchemaVersion = 1
)

// TokenRegisteredPayload mirrors the TokenRegistered notification fields.
type TokenRegisteredPayload struct {
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	AssetKind     string `json:"asset_kind"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	PaymentToken  string `json:"payment_token"`
}

// TokenPurchasedPayload mirrors the buyToken notification fields.
type TokenPurchasedPayload struct {
	Buyer         string `json:"buyer"`
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	Quantity      int64  `json:"quantity"`
	TotalCharge   int64  `json:"total_charge"`
}

type ListingCancelledPayload struct {
	SellerAddress string `json:"seller_address"`
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	Remaining     int64  `json:"remaining_quantity"`
}

// newOutboxEvent wraps a payload in the canonical envelope and serializes it
// into the outbox row committed with the listing state change.
func newOutboxEvent(
	eventID string,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	payload any,
) (ports.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	envelope := ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    eventSourceService,
		SchemaVersion:    eventSchemaVersion,
		PartitionKeyPath: "asset_id",
		PartitionKey:     partitionKey,
		Data:             data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   occurredAt.UTC(),
	}, nil
}
