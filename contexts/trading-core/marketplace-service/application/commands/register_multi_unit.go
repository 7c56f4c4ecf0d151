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

type RegisterMultiUnitListingCommand struct {
	SellerAddress  string
	AssetContract  string
	AssetID        string
	Quantity       int64
	UnitPrice      int64
	PaymentToken   string
	ExtraData      string
	IdempotencyKey string
}

type RegisterListingResult struct {
	Listing  entities.Listing
	Replayed bool
}

type RegisterMultiUnitListingUseCase struct {
	Listings       ports.ListingRepository
	Ledgers        ports.LedgerResolver
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Locks          *application.KeyedMutex
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute admits a multi-unit listing in this order:
// 1) idempotency lookup/replay
// 2) offer validation and seller balance check against the asset ledger
// 3) atomic listing + outbox persistence
// 4) idempotency record write.
// Validation runs before any state mutation; no partial listing is ever visible.
func (u RegisterMultiUnitListingUseCase) Execute(
	ctx context.Context,
	cmd RegisterMultiUnitListingCommand,
) (RegisterListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	seller := strings.TrimSpace(cmd.SellerAddress)
	assetContract := strings.TrimSpace(cmd.AssetContract)
	assetID := strings.TrimSpace(cmd.AssetID)
	paymentToken := strings.TrimSpace(cmd.PaymentToken)
	if seller == "" || assetID == "" {
		return RegisterListingResult{}, domainerrors.ErrInvalidRequest
	}
	if err := services.ValidateOffer(assetContract, paymentToken, cmd.Quantity, cmd.UnitPrice); err != nil {
		return RegisterListingResult{}, err
	}

	idempotencyKey, err := requireIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return RegisterListingResult{}, err
	}
	requestHash := hashRequest(
		"register_multi_unit",
		seller,
		assetContract,
		assetID,
		fmt.Sprintf("%d", cmd.Quantity),
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

	ledger, err := u.Ledgers.MultiUnit(assetContract)
	if err != nil {
		return RegisterListingResult{}, err
	}
	if _, err := u.Ledgers.Payment(paymentToken); err != nil {
		return RegisterListingResult{}, err
	}
	balance, err := ledger.BalanceOf(ctx, seller, assetID)
	if err != nil {
		return RegisterListingResult{}, err
	}
	if balance < cmd.Quantity {
		logger.Warn("multi-unit registration rejected",
			"event", "marketplace_register_insufficient_balance",
			"module", "trading-core/marketplace-service",
			"layer", "application",
			"seller", seller,
			"asset_contract", assetContract,
			"asset_id", assetID,
			"offered_quantity", cmd.Quantity,
			"seller_balance", balance,
		)
		return RegisterListingResult{}, domainerrors.ErrInsufficientAssetBalance
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
		AssetKind:         entities.AssetKindMultiUnit,
		TotalQuantity:     cmd.Quantity,
		RemainingQuantity: cmd.Quantity,
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
		AssetKind:     string(entities.AssetKindMultiUnit),
		Quantity:      cmd.Quantity,
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

	logger.Info("multi-unit listing registered",
		"event", "marketplace_token_registered",
		"module", "trading-core/marketplace-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"seller", seller,
		"asset_contract", assetContract,
		"asset_id", assetID,
		"quantity", cmd.Quantity,
		"unit_price", cmd.UnitPrice,
		"payment_token", paymentToken,
	)
	return RegisterListingResult{Listing: listing}, nil
}

func (u RegisterMultiUnitListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
