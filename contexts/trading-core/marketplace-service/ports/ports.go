package ports

import (
	"context"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	contractsv1 "tokenmart/contracts/gen/events/v1"
)

// ListingFilter defines read-side filtering/pagination for the listing catalog.
type ListingFilter struct {
	SellerAddress string
	AssetContract string
	Kind          entities.AssetKind
	Page          int
	Limit         int
}

// OutboxEvent is the outbound integration payload persisted with a state change.
type OutboxEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// ListingRepository owns listing persistence and the transaction boundaries
// that keep listing state and outbox rows in one commit.
type ListingRepository interface {
	GetListing(ctx context.Context, assetContract string, assetID string) (entities.Listing, error)
	// FindListingByAssetID resolves the single active listing for an asset id.
	// The registry enforces at most one active listing per asset id, so the
	// lookup is unambiguous.
	FindListingByAssetID(ctx context.Context, assetID string) (entities.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]entities.Listing, int, error)
	// CreateListingWithOutbox must atomically persist the listing and its
	// registration event, failing with ErrListingAlreadyActive when the asset
	// already carries an active listing.
	CreateListingWithOutbox(ctx context.Context, listing entities.Listing, event OutboxEvent) error
	// ApplySettlement decrements remaining quantity and appends the purchase
	// event in the same commit. The listing leaves the active set when its
	// remaining quantity reaches zero.
	ApplySettlement(ctx context.Context, assetContract string, assetID string, quantity int64, event OutboxEvent, now time.Time) (entities.Listing, error)
	// CancelListing removes an active listing on behalf of its seller.
	CancelListing(ctx context.Context, assetContract string, assetID string, sellerAddress string, event OutboxEvent, now time.Time) (entities.Listing, error)
}

// MultiUnitLedger is the external collaborator tracking per-id quantities.
type MultiUnitLedger interface {
	BalanceOf(ctx context.Context, owner string, assetID string) (int64, error)
	IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error)
	TransferFrom(ctx context.Context, from string, to string, assetID string, quantity int64) error
}

// UniqueLedger is the external collaborator tracking single-unit ownership.
type UniqueLedger interface {
	OwnerOf(ctx context.Context, assetID string) (string, error)
	IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error)
	TransferFrom(ctx context.Context, from string, to string, assetID string) error
}

// PaymentLedger is the external collaborator tracking fungible balances and
// spending allowances.
type PaymentLedger interface {
	BalanceOf(ctx context.Context, owner string) (int64, error)
	Allowance(ctx context.Context, owner string, spender string) (int64, error)
	TransferFrom(ctx context.Context, from string, to string, amount int64) error
}

// LedgerResolver maps opaque contract references onto ledger capabilities.
// The core consumes ledgers, it never implements them.
type LedgerResolver interface {
	MultiUnit(contractRef string) (MultiUnitLedger, error)
	Unique(contractRef string) (UniqueLedger, error)
	Payment(tokenRef string) (PaymentLedger, error)
}

// IdempotencyRecord captures dedupe metadata for mutating requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock allows deterministic testing of time-dependent rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts listing/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
