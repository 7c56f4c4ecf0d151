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

type BuyListingCommand struct {
	BuyerAddress   string
	PaymentToken   string
	AssetID        string
	Quantity       int64
	OfferedTotal   int64
	IdempotencyKey string
}

// Receipt records a settled purchase.
type Receipt struct {
	ListingID         string
	Buyer             string
	Seller            string
	AssetContract     string
	AssetID           string
	AssetKind         entities.AssetKind
	Quantity          int64
	UnitPrice         int64
	TotalCharge       int64
	RemainingQuantity int64
	ListingClosed     bool
	SettledAt         time.Time
}

type BuyListingResult struct {
	Receipt  Receipt
	Replayed bool
}

type BuyListingUseCase struct {
	Listings        ports.ListingRepository
	Ledgers         ports.LedgerResolver
	Idempotency     ports.IdempotencyStore
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Locks           *application.KeyedMutex
	OperatorAddress string
	IdempotencyTTL  time.Duration
	Logger          *slog.Logger
}

// Execute settles an asset-for-payment exchange against an existing listing.
// Under the listing's key lock the sequence is:
// 1) resolve listing by asset id
// 2) inventory, payment coverage, token match, and offered ceiling checks
// 3) seller approval check, then payment transfer, then asset transfer
// 4) atomic inventory decrement + outbox persistence; the listing leaves the
//    registry when remaining quantity hits zero.
// Every precondition failure aborts before any transfer is attempted.
func (u BuyListingUseCase) Execute(ctx context.Context, cmd BuyListingCommand) (BuyListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	buyer := strings.TrimSpace(cmd.BuyerAddress)
	paymentToken := strings.TrimSpace(cmd.PaymentToken)
	assetID := strings.TrimSpace(cmd.AssetID)
	if buyer == "" || paymentToken == "" || assetID == "" || cmd.Quantity <= 0 {
		return BuyListingResult{}, domainerrors.ErrInvalidRequest
	}

	idempotencyKey, err := requireIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return BuyListingResult{}, err
	}
	requestHash := hashRequest(
		"buy_listing",
		buyer,
		paymentToken,
		assetID,
		fmt.Sprintf("%d", cmd.Quantity),
		fmt.Sprintf("%d", cmd.OfferedTotal),
	)

	now := u.now()
	var replayed Receipt
	hit, err := replayIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, now,
		func(raw []byte) error { return json.Unmarshal(raw, &replayed) })
	if err != nil {
		return BuyListingResult{}, err
	}
	if hit {
		return BuyListingResult{Receipt: replayed, Replayed: true}, nil
	}

	// First lookup learns the listing key; the authoritative read happens
	// again under the key lock.
	listing, err := u.Listings.FindListingByAssetID(ctx, assetID)
	if err != nil {
		return BuyListingResult{}, err
	}

	unlock := u.Locks.Lock(listing.Key())
	defer unlock()

	listing, err = u.Listings.GetListing(ctx, listing.AssetContract, listing.AssetID)
	if err != nil {
		return BuyListingResult{}, err
	}

	if err := services.CheckInventory(listing, cmd.Quantity); err != nil {
		return BuyListingResult{}, err
	}
	charge, err := services.ComputeCharge(listing.UnitPrice, cmd.Quantity)
	if err != nil {
		return BuyListingResult{}, err
	}

	payment, err := u.Ledgers.Payment(listing.PaymentToken)
	if err != nil {
		return BuyListingResult{}, err
	}
	if err := u.checkPaymentCoverage(ctx, payment, buyer, charge); err != nil {
		return BuyListingResult{}, err
	}
	if err := services.CheckPaymentToken(listing, paymentToken); err != nil {
		return BuyListingResult{}, err
	}
	if err := services.CheckOfferedPayment(cmd.OfferedTotal, charge); err != nil {
		return BuyListingResult{}, err
	}

	transferAsset, err := u.prepareAssetTransfer(ctx, listing, buyer, cmd.Quantity)
	if err != nil {
		return BuyListingResult{}, err
	}

	// Transfers are ordered payment first, asset second. The external ledgers
	// offer no rollback; a refusal after this point is a fatal abort with no
	// listing mutation and no event emission.
	if err := payment.TransferFrom(ctx, buyer, listing.SellerAddress, charge); err != nil {
		logger.Error("payment transfer refused",
			"event", "marketplace_settlement_payment_transfer_failed",
			"module", "trading-core/marketplace-service",
			"layer", "application",
			"listing_id", listing.ListingID,
			"buyer", buyer,
			"charge", charge,
			"error", err.Error(),
		)
		return BuyListingResult{}, fmt.Errorf("%w: %v", domainerrors.ErrTransferFailed, err)
	}
	if err := transferAsset(); err != nil {
		logger.Error("asset transfer refused after payment",
			"event", "marketplace_settlement_asset_transfer_failed",
			"module", "trading-core/marketplace-service",
			"layer", "application",
			"listing_id", listing.ListingID,
			"buyer", buyer,
			"asset_contract", listing.AssetContract,
			"asset_id", listing.AssetID,
			"error", err.Error(),
		)
		return BuyListingResult{}, fmt.Errorf("%w: %v", domainerrors.ErrTransferFailed, err)
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return BuyListingResult{}, err
	}
	event, err := newOutboxEvent(eventID, TokenPurchasedEventType, listing.AssetID, now, TokenPurchasedPayload{
		Buyer:         buyer,
		AssetContract: listing.AssetContract,
		AssetID:       listing.AssetID,
		Quantity:      cmd.Quantity,
		TotalCharge:   charge,
	})
	if err != nil {
		return BuyListingResult{}, err
	}

	updated, err := u.Listings.ApplySettlement(ctx, listing.AssetContract, listing.AssetID, cmd.Quantity, event, now)
	if err != nil {
		return BuyListingResult{}, err
	}

	receipt := Receipt{
		ListingID:         listing.ListingID,
		Buyer:             buyer,
		Seller:            listing.SellerAddress,
		AssetContract:     listing.AssetContract,
		AssetID:           listing.AssetID,
		AssetKind:         listing.AssetKind,
		Quantity:          cmd.Quantity,
		UnitPrice:         listing.UnitPrice,
		TotalCharge:       charge,
		RemainingQuantity: updated.RemainingQuantity,
		ListingClosed:     updated.RemainingQuantity == 0,
		SettledAt:         now,
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return BuyListingResult{}, err
	}
	if err := commitIdempotent(ctx, u.Idempotency, idempotencyKey, requestHash, payload,
		now.Add(resolveTTL(u.IdempotencyTTL))); err != nil {
		return BuyListingResult{}, err
	}

	logger.Info("listing settled",
		"event", "marketplace_token_purchased",
		"module", "trading-core/marketplace-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"buyer", buyer,
		"seller", listing.SellerAddress,
		"asset_contract", listing.AssetContract,
		"asset_id", listing.AssetID,
		"quantity", cmd.Quantity,
		"total_charge", charge,
		"remaining_quantity", updated.RemainingQuantity,
	)
	return BuyListingResult{Receipt: receipt}, nil
}

// checkPaymentCoverage verifies both the buyer's balance and the allowance
// granted to the marketplace operator before any transfer is attempted.
func (u BuyListingUseCase) checkPaymentCoverage(
	ctx context.Context,
	payment ports.PaymentLedger,
	buyer string,
	charge int64,
) error {
	balance, err := payment.BalanceOf(ctx, buyer)
	if err != nil {
		return err
	}
	allowance, err := payment.Allowance(ctx, buyer, u.OperatorAddress)
	if err != nil {
		return err
	}
	if balance < charge || allowance < charge {
		return domainerrors.ErrPaymentInsufficient
	}
	return nil
}

// prepareAssetTransfer dispatches on the listing's asset kind, verifies the
// seller has approved the marketplace operator, and returns the deferred
// transfer to run after the payment leg.
func (u BuyListingUseCase) prepareAssetTransfer(
	ctx context.Context,
	listing entities.Listing,
	buyer string,
	quantity int64,
) (func() error, error) {
	switch listing.AssetKind {
	case entities.AssetKindMultiUnit:
		ledger, err := u.Ledgers.MultiUnit(listing.AssetContract)
		if err != nil {
			return nil, err
		}
		approved, err := ledger.IsApprovedForAll(ctx, listing.SellerAddress, u.OperatorAddress)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, domainerrors.ErrOperatorNotApproved
		}
		return func() error {
			return ledger.TransferFrom(ctx, listing.SellerAddress, buyer, listing.AssetID, quantity)
		}, nil
	case entities.AssetKindUnique:
		ledger, err := u.Ledgers.Unique(listing.AssetContract)
		if err != nil {
			return nil, err
		}
		approved, err := ledger.IsApprovedForAll(ctx, listing.SellerAddress, u.OperatorAddress)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, domainerrors.ErrOperatorNotApproved
		}
		return func() error {
			return ledger.TransferFrom(ctx, listing.SellerAddress, buyer, listing.AssetID)
		}, nil
	default:
		return nil, domainerrors.ErrInvalidRequest
	}
}

func (u BuyListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
