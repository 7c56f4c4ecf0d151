package memory

import (
	"context"
	"errors"
	"testing"

	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
)

func TestLedgersResolveOnlyRegisteredContracts(t *testing.T) {
	ledgers := NewLedgers()
	ledgers.RegisterMultiUnit("coll-a")

	if _, err := ledgers.MultiUnit("coll-a"); err != nil {
		t.Fatalf("registered ledger should resolve: %v", err)
	}
	if _, err := ledgers.MultiUnit("coll-b"); !errors.Is(err, domainerrors.ErrLedgerNotFound) {
		t.Fatalf("expected ledger not found, got %v", err)
	}
	if _, err := ledgers.Payment("pay-token"); !errors.Is(err, domainerrors.ErrLedgerNotFound) {
		t.Fatalf("expected ledger not found, got %v", err)
	}
}

func TestMultiUnitTransferRequiresBalance(t *testing.T) {
	ledger := NewLedgers().RegisterMultiUnit("coll-a")
	ledger.Mint("owner-a", "7", 2)

	if err := ledger.TransferFrom(context.Background(), "owner-a", "owner-b", "7", 3); !errors.Is(err, domainerrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failure on overdraw, got %v", err)
	}
	if err := ledger.TransferFrom(context.Background(), "owner-a", "owner-b", "7", 2); err != nil {
		t.Fatalf("transfer should succeed: %v", err)
	}

	remaining, _ := ledger.BalanceOf(context.Background(), "owner-a", "7")
	received, _ := ledger.BalanceOf(context.Background(), "owner-b", "7")
	if remaining != 0 || received != 2 {
		t.Fatalf("expected 0/2 split, got %d/%d", remaining, received)
	}
}

func TestUniqueTransferRequiresCurrentOwner(t *testing.T) {
	ledger := NewLedgers().RegisterUnique("coll-a")
	ledger.Mint("owner-a", "7")

	if err := ledger.TransferFrom(context.Background(), "owner-b", "owner-c", "7"); !errors.Is(err, domainerrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failure for non-owner, got %v", err)
	}
	if err := ledger.TransferFrom(context.Background(), "owner-a", "owner-b", "7"); err != nil {
		t.Fatalf("transfer should succeed: %v", err)
	}

	owner, err := ledger.OwnerOf(context.Background(), "7")
	if err != nil || owner != "owner-b" {
		t.Fatalf("expected owner-b, got %s (%v)", owner, err)
	}
	if _, err := ledger.OwnerOf(context.Background(), "8"); !errors.Is(err, domainerrors.ErrAssetNotFound) {
		t.Fatalf("expected asset not found for unminted id, got %v", err)
	}
}
