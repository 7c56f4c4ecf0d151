package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "tokenmart/contexts/trading-core/marketplace-service/application"
	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/domain/services"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

type RegisterUniqueListingCommand struct {
	SellerAddress  string
	AssetContract  string
	AssetID        string
	UnitPrice      int64
	PaymentToken   string
	ExtraData      string
	IdempotencyKey string
}

type RegisterUniqueListingUseCase struct {
	Listings       ports.ListingRepository
	Ledgers        ports.LedgerResolver
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Locks          *application.KeyedMutex
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute admits a unique listing. The asset id must exist in the collection
// and be owned by the registering party; a unique listing always offers
// exactly one unit.
func (u RegisterUniqueListingUseCase) Execute(
	ctx context.Context,
	cmd RegisterUniqueListingCommand,
) (RegisterListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	seller := strings.TrimSpace(cmd.SellerAddress)
	assetContract := strings.TrimSpace(cmd.AssetContract)
	assetID := strings.TrimSpace(cmd.AssetID)
	paymentToken := strings.TrimSpace(cmd.PaymentToken)
	if seller == "" || assetID == "" {
		return RegisterListingResult{}, domainerrors.ErrInvalidRequest
	}
	if err := services.ValidateOffer(assetContract, paymentToken, 1, cmd.UnitPrice); err != nil {
		return RegisterListingResult{}, err
	}

	idempotencyKey, err := requireIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return RegisterListingResult{}, err
	}
	requestHash := hashRequest(
		"register_unique",
		seller,
		assetContract,
		assetID,
		fmt.Sprintf("%d", cmd.UnitPrice),
		paymentToken,
		cmd.ExtraData,
	)

	now := u.now()
	var replayed entities.Listing
	hit, err := replayIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, now,
		func(raw []byte) error { return json.Unmarshal(raw, &replayed) })
	if err != nil {
		return RegisterListingResult{}, err
	}
	if hit {
		return RegisterListingResult{Listing: replayed, Replayed: true}, nil
	}

	unlock := u.Locks.Lock(assetContract + "/" + assetID)
	defer unlock()

	ledger, err := u.Ledgers.Unique(assetContract)
	if err != nil {
		return RegisterListingResult{}, err
	}
	if _, err := u.Ledgers.Payment(paymentToken); err != nil {
		return RegisterListingResult{}, err
	}
	owner, err := ledger.OwnerOf(ctx, assetID)
	if err != nil {
		logger.Warn("unique registration rejected",
			"event", "marketplace_register_unknown_asset",
			"module", "trading-core/marketplace-service",
			"layer", "application",
			"seller", seller,
			"asset_contract", assetContract,
			"asset_id", assetID,
			"error", err.Error(),
		)
		return RegisterListingResult{}, err
	}
	if owner != seller {
		return RegisterListingResult{}, domainerrors.ErrNotOwner
	}

	listingID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return RegisterListingResult{}, err
	}
	listing := entities.Listing{
		ListingID:         listingID,
		SellerAddress:     seller,
		AssetContract:     assetContract,
		AssetID:           assetID,
		AssetKind:         entities.AssetKindUnique,
		TotalQuantity:     1,
		RemainingQuantity: 1,
		UnitPrice:         cmd.UnitPrice,
		PaymentToken:      paymentToken,
		ExtraData:         cmd.ExtraData,
		Status:            entities.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return RegisterListingResult{}, err
	}
	event, err := newOutboxEvent(eventID, TokenRegisteredEventType, assetID, now, TokenRegisteredPayload{
		AssetContract: assetContract,
		AssetID:       assetID,
		AssetKind:     string(entities.AssetKindUnique),
		Quantity:      1,
		UnitPrice:     cmd.UnitPrice,
		PaymentToken:  paymentToken,
	})
	if err != nil {
		return RegisterListingResult{}, err
	}

	if err := u.Listings.CreateListingWithOutbox(ctx, listing, event); err != nil {
		return RegisterListingResult{}, err
	}

	payload, err := json.Marshal(listing)
	if err != nil {
		return RegisterListingResult{}, err
	}
	if err := commitIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, payload,
		now.Add(resolveTTL(u.IdempotencyTTL))); err != nil {
		return RegisterListingResult{}, err
	}

	logger.Info("unique listing registered",
		"event", "marketplace_token_registered",
		"module", "trading-core/marketplace-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"seller", seller,
		"asset_contract", assetContract,
		"asset_id", assetID,
		"unit_price", cmd.UnitPrice,
		"payment_token", paymentToken,
	)
	return RegisterListingResult{Listing: listing}, nil
}

func (u RegisterUniqueListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
