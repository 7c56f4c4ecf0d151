package services

import (
	"errors"
	"math"
	"testing"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
)

func TestValidateOffer(t *testing.T) {
	if err := ValidateOffer("coll", "pay", 3, 2); err != nil {
		t.Fatalf("valid offer should pass: %v", err)
	}
	if err := ValidateOffer("coll", "pay", 0, 2); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero quantity should be invalid, got %v", err)
	}
	if err := ValidateOffer("coll", "pay", 3, -1); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("negative price should be invalid, got %v", err)
	}
	if err := ValidateOffer("coll", "coll", 3, 2); !errors.Is(err, domainerrors.ErrInvalidPaymentToken) {
		t.Fatalf("payment token matching the collection should be rejected, got %v", err)
	}
}

func TestComputeCharge(t *testing.T) {
	charge, err := ComputeCharge(3, 2)
	if err != nil || charge != 6 {
		t.Fatalf("expected charge 6, got %d (%v)", charge, err)
	}

	if _, err := ComputeCharge(math.MaxInt64, 2); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("overflow should be rejected, got %v", err)
	}
	if _, err := ComputeCharge(5, 0); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero quantity should be rejected, got %v", err)
	}
}

func TestCheckInventory(t *testing.T) {
	listing := entities.Listing{
		Status:            entities.ListingStatusActive,
		RemainingQuantity: 3,
	}
	if err := CheckInventory(listing, 3); err != nil {
		t.Fatalf("buying exactly the remainder should pass: %v", err)
	}
	if err := CheckInventory(listing, 4); !errors.Is(err, domainerrors.ErrInsufficientInventory) {
		t.Fatalf("overbuying should fail, got %v", err)
	}
	if err := CheckInventory(listing, 0); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero quantity should fail, got %v", err)
	}

	cancelled := listing
	cancelled.Status = entities.ListingStatusCancelled
	if err := CheckInventory(cancelled, 1); !errors.Is(err, domainerrors.ErrInsufficientInventory) {
		t.Fatalf("cancelled listing should not sell, got %v", err)
	}
}

func TestCheckPaymentToken(t *testing.T) {
	listing := entities.Listing{PaymentToken: "pay"}
	if err := CheckPaymentToken(listing, "pay"); err != nil {
		t.Fatalf("matching token should pass: %v", err)
	}
	if err := CheckPaymentToken(listing, "other"); !errors.Is(err, domainerrors.ErrWrongPaymentToken) {
		t.Fatalf("mismatched token should fail, got %v", err)
	}
}

func TestCheckOfferedPayment(t *testing.T) {
	if err := CheckOfferedPayment(6, 6); err != nil {
		t.Fatalf("exact offer should pass: %v", err)
	}
	if err := CheckOfferedPayment(7, 6); err != nil {
		t.Fatalf("higher ceiling should pass: %v", err)
	}
	if err := CheckOfferedPayment(5, 6); !errors.Is(err, domainerrors.ErrPriceMismatch) {
		t.Fatalf("offer below charge should fail, got %v", err)
	}
}
