package services

import (
	"math"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
)

// ValidateOffer enforces the registration preconditions that do not need a
// ledger round-trip: positive quantity and price, and a payment token that
// is a different contract than the asset collection itself.
func ValidateOffer(assetContract string, paymentToken string, quantity int64, unitPrice int64) error {
	if quantity <= 0 || unitPrice <= 0 {
		return domainerrors.ErrInvalidRequest
	}
	if paymentToken == "" || assetContract == "" {
		return domainerrors.ErrInvalidRequest
	}
	if paymentToken == assetContract {
		return domainerrors.ErrInvalidPaymentToken
	}
	return nil
}

// ComputeCharge returns unitPrice multiplied by quantity, rejecting
// arithmetic overflow as an invalid request.
func ComputeCharge(unitPrice int64, quantity int64) (int64, error) {
	if unitPrice <= 0 || quantity <= 0 {
		return 0, domainerrors.ErrInvalidRequest
	}
	if unitPrice > math.MaxInt64/quantity {
		return 0, domainerrors.ErrInvalidRequest
	}
	return unitPrice * quantity, nil
}

// CheckInventory verifies the requested quantity against remaining units.
func CheckInventory(listing entities.Listing, quantity int64) error {
	if quantity <= 0 {
		return domainerrors.ErrInvalidRequest
	}
	if !listing.IsSellable(quantity) {
		return domainerrors.ErrInsufficientInventory
	}
	return nil
}

// CheckPaymentToken closes the trust gap on buy: the caller-supplied token
// must be the one recorded on the listing.
func CheckPaymentToken(listing entities.Listing, paymentToken string) error {
	if paymentToken != listing.PaymentToken {
		return domainerrors.ErrWrongPaymentToken
	}
	return nil
}

// CheckOfferedPayment treats the caller's total as an authorization ceiling:
// the engine always charges the computed amount and refuses to settle when
// the ceiling is below it.
func CheckOfferedPayment(offeredTotal int64, charge int64) error {
	if offeredTotal < charge {
		return domainerrors.ErrPriceMismatch
	}
	return nil
}
