package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

func newTestListing(assetContract string, assetID string, quantity int64) entities.Listing {
	now := time.Now().UTC()
	return entities.Listing{
		ListingID:         "mkt_test_" + assetID,
		SellerAddress:     "seller-a",
		AssetContract:     assetContract,
		AssetID:           assetID,
		AssetKind:         entities.AssetKindMultiUnit,
		TotalQuantity:     quantity,
		RemainingQuantity: quantity,
		UnitPrice:         2,
		PaymentToken:      "pay-token",
		Status:            entities.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newTestEvent(eventID string) ports.OutboxEvent {
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    "marketplace.test",
		PartitionKey: "7",
		Payload:      []byte(`{"event_id":"` + eventID + `"}`),
		OccurredAt:   time.Now().UTC(),
	}
}

func TestCreateListingRejectsDuplicateAssetID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 3), newTestEvent("ev-1")); err != nil {
		t.Fatalf("first create should succeed: %v", err)
	}
	err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 2), newTestEvent("ev-2"))
	if !errors.Is(err, domainerrors.ErrListingAlreadyActive) {
		t.Fatalf("expected duplicate key rejection, got %v", err)
	}

	// Same asset id under a different collection must also be refused while
	// the first listing is active.
	err = store.CreateListingWithOutbox(ctx, newTestListing("coll-b", "7", 2), newTestEvent("ev-3"))
	if !errors.Is(err, domainerrors.ErrListingAlreadyActive) {
		t.Fatalf("expected cross-collection rejection, got %v", err)
	}
}

func TestApplySettlementDecrementsAndCloses(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 3), newTestEvent("ev-1")); err != nil {
		t.Fatalf("create should succeed: %v", err)
	}

	listing, err := store.ApplySettlement(ctx, "coll-a", "7", 1, newTestEvent("ev-2"), now)
	if err != nil {
		t.Fatalf("settlement should succeed: %v", err)
	}
	if listing.RemainingQuantity != 2 || listing.Status != entities.ListingStatusActive {
		t.Fatalf("expected 2 remaining active, got %d %s", listing.RemainingQuantity, listing.Status)
	}

	listing, err = store.ApplySettlement(ctx, "coll-a", "7", 2, newTestEvent("ev-3"), now)
	if err != nil {
		t.Fatalf("final settlement should succeed: %v", err)
	}
	if listing.RemainingQuantity != 0 || listing.Status != entities.ListingStatusSoldOut {
		t.Fatalf("expected sold out, got %d %s", listing.RemainingQuantity, listing.Status)
	}

	if _, err := store.GetListing(ctx, "coll-a", "7"); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("sold out listing should be gone, got %v", err)
	}
	if _, err := store.FindListingByAssetID(ctx, "7"); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("asset index should be cleared, got %v", err)
	}

	// Asset id is free for a fresh listing once the previous one closed.
	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 5), newTestEvent("ev-4")); err != nil {
		t.Fatalf("relisting after close should succeed: %v", err)
	}
}

func TestApplySettlementRejectsOverdraw(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 3), newTestEvent("ev-1")); err != nil {
		t.Fatalf("create should succeed: %v", err)
	}
	_, err := store.ApplySettlement(ctx, "coll-a", "7", 4, newTestEvent("ev-2"), time.Now().UTC())
	if !errors.Is(err, domainerrors.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	if got := store.PendingOutboxCount(); got != 1 {
		t.Fatalf("failed settlement must not enqueue events, got %d", got)
	}
}

func TestCancelListingChecksSeller(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 3), newTestEvent("ev-1")); err != nil {
		t.Fatalf("create should succeed: %v", err)
	}

	_, err := store.CancelListing(ctx, "coll-a", "7", "intruder", newTestEvent("ev-2"), time.Now().UTC())
	if !errors.Is(err, domainerrors.ErrNotSeller) {
		t.Fatalf("expected not seller, got %v", err)
	}

	listing, err := store.CancelListing(ctx, "coll-a", "7", "seller-a", newTestEvent("ev-3"), time.Now().UTC())
	if err != nil {
		t.Fatalf("seller cancel should succeed: %v", err)
	}
	if listing.Status != entities.ListingStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", listing.Status)
	}
	if _, err := store.GetListing(ctx, "coll-a", "7"); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("cancelled listing should be gone, got %v", err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.CreateListingWithOutbox(ctx, newTestListing("coll-a", "7", 3), newTestEvent("ev-1")); err != nil {
		t.Fatalf("create should succeed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending row, got %d (%v)", len(pending), err)
	}
	if pending[0].OutboxID != "ev-1" {
		t.Fatalf("unexpected outbox id %s", pending[0].OutboxID)
	}

	if err := store.MarkOutboxSent(ctx, "ev-1", time.Now().UTC()); err != nil {
		t.Fatalf("mark sent should succeed: %v", err)
	}
	if got := store.PendingOutboxCount(); got != 0 {
		t.Fatalf("expected drained outbox, got %d", got)
	}
}

func TestIdempotencyExpiry(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	record := ports.IdempotencyRecord{
		Key:         "idem-1",
		RequestHash: "hash-1",
		Payload:     []byte(`{"ok":true}`),
		ExpiresAt:   now.Add(time.Hour),
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put should succeed: %v", err)
	}

	got, found, err := store.Get(ctx, "idem-1", now)
	if err != nil || !found || got.RequestHash != "hash-1" {
		t.Fatalf("expected live record, found=%v (%v)", found, err)
	}

	_, found, err = store.Get(ctx, "idem-1", now.Add(2*time.Hour))
	if err != nil || found {
		t.Fatalf("expected expired record to vanish, found=%v (%v)", found, err)
	}

	conflicting := record
	conflicting.RequestHash = "hash-2"
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("re-put should succeed: %v", err)
	}
	if err := store.Put(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected key conflict, got %v", err)
	}
}
