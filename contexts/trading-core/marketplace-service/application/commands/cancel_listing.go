package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "tokenmart/contexts/trading-core/marketplace-service/application"
	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

type CancelListingCommand struct {
	SellerAddress  string
	AssetContract  string
	AssetID        string
	IdempotencyKey string
}

type CancelListingResult struct {
	Listing  entities.Listing
	Replayed bool
}

type CancelListingUseCase struct {
	Listings       ports.ListingRepository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Locks          *application.KeyedMutex
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute withdraws an active listing. Only the registering seller may cancel.
func (u CancelListingUseCase) Execute(ctx context.Context, cmd CancelListingCommand) (CancelListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	seller := strings.TrimSpace(cmd.SellerAddress)
	assetContract := strings.TrimSpace(cmd.AssetContract)
	assetID := strings.TrimSpace(cmd.AssetID)
	if seller == "" || assetContract == "" || assetID == "" {
		return CancelListingResult{}, domainerrors.ErrInvalidRequest
	}

	idempotencyKey, err := requireIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return CancelListingResult{}, err
	}
	requestHash := hashRequest("cancel_listing", seller, assetContract, assetID)

	now := u.now()
	var replayed entities.Listing
	hit, err := replayIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, now,
		func(raw []byte) error { return json.Unmarshal(raw, &replayed) })
	if err != nil {
		return CancelListingResult{}, err
	}
	if hit {
		return CancelListingResult{Listing: replayed, Replayed: true}, nil
	}

	unlock := u.Locks.Lock(assetContract + "/" + assetID)
	defer unlock()

	listing, err := u.Listings.GetListing(ctx, assetContract, assetID)
	if err != nil {
		return CancelListingResult{}, err
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return CancelListingResult{}, err
	}
	event, err := newOutboxEvent(eventID, ListingCancelledEventType, assetID, now, ListingCancelledPayload{
		SellerAddress: seller,
		AssetContract: assetContract,
		AssetID:       assetID,
		Remaining:     listing.RemainingQuantity,
	})
	if err != nil {
		return CancelListingResult{}, err
	}

	cancelled, err := u.Listings.CancelListing(ctx, assetContract, assetID, seller, event, now)
	if err != nil {
		return CancelListingResult{}, err
	}

	payload, err := json.Marshal(cancelled)
	if err != nil {
		return CancelListingResult{}, err
	}
	if err := commitIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, payload,
		now.Add(resolveTTL(u.IdempotencyTTL))); err != nil {
		return CancelListingResult{}, err
	}

	logger.Info("listing cancelled",
		"event", "marketplace_listing_cancelled",
		"module", "trading-core/marketplace-service",
		"layer", "application",
		"listing_id", cancelled.ListingID,
		"seller", seller,
		"asset_contract", assetContract,
		"asset_id", assetID,
	)
	return CancelListingResult{Listing: cancelled}, nil
}

func (u CancelListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
