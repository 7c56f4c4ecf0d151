package unit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	marketplaceservice "tokenmart/contexts/trading-core/marketplace-service"
	"tokenmart/contexts/trading-core/marketplace-service/adapters/memory"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	httptransport "tokenmart/contexts/trading-core/marketplace-service/transport/http"
)

const (
	testOperator      = "marketplace-operator"
	testMultiContract = "asset-coll-1155"
	testUniqueContract = "asset-coll-721"
	testPaymentToken  = "pay-token"
	testSeller        = "seller-a"
	testBuyer         = "buyer-b"
)

type marketFixture struct {
	module    marketplaceservice.Module
	multiUnit *memory.MultiUnitLedger
	unique    *memory.UniqueLedger
	payment   *memory.PaymentLedger
}

func newMarketFixture(t *testing.T) marketFixture {
	t.Helper()
	module := marketplaceservice.NewInMemoryModule(testOperator, nil)
	return marketFixture{
		module:    module,
		multiUnit: module.Ledgers.RegisterMultiUnit(testMultiContract),
		unique:    module.Ledgers.RegisterUnique(testUniqueContract),
		payment:   module.Ledgers.RegisterPayment(testPaymentToken),
	}
}

func (f marketFixture) registerMultiUnit(t *testing.T, assetID string, quantity int64, unitPrice int64) httptransport.RegisterListingResponse {
	t.Helper()
	resp, err := f.module.Handler.RegisterMultiUnitHandler(
		context.Background(),
		testSeller,
		"idem-register-"+assetID,
		httptransport.RegisterMultiUnitRequest{
			AssetContract: testMultiContract,
			AssetID:       assetID,
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			PaymentToken:  testPaymentToken,
		},
	)
	if err != nil {
		t.Fatalf("register multi-unit should succeed: %v", err)
	}
	return resp
}

func (f marketFixture) registerUnique(t *testing.T, assetID string, unitPrice int64) httptransport.RegisterListingResponse {
	t.Helper()
	resp, err := f.module.Handler.RegisterUniqueHandler(
		context.Background(),
		testSeller,
		"idem-register-unique-"+assetID,
		httptransport.RegisterUniqueRequest{
			AssetContract: testUniqueContract,
			AssetID:       assetID,
			UnitPrice:     unitPrice,
			PaymentToken:  testPaymentToken,
		},
	)
	if err != nil {
		t.Fatalf("register unique should succeed: %v", err)
	}
	return resp
}

func (f marketFixture) fundBuyer(amount int64) {
	f.payment.Mint(testBuyer, amount)
	f.payment.Approve(testBuyer, testOperator, amount)
}

func TestRegisterMultiUnitListing(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 10)

	resp := f.registerMultiUnit(t, "7", 5, 2)
	listing := resp.Data.Listing
	if listing.AssetKind != "multi_unit" {
		t.Fatalf("expected multi_unit kind, got %s", listing.AssetKind)
	}
	if listing.TotalQuantity != 5 || listing.RemainingQuantity != 5 {
		t.Fatalf("expected 5/5 units, got %d/%d", listing.RemainingQuantity, listing.TotalQuantity)
	}
	if listing.Status != "active" {
		t.Fatalf("expected active listing, got %s", listing.Status)
	}
	if got := f.module.Store.PendingOutboxCount(); got != 1 {
		t.Fatalf("expected one pending outbox event, got %d", got)
	}
}

func TestRegisterMultiUnitInsufficientBalance(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 5)

	_, err := f.module.Handler.RegisterMultiUnitHandler(
		context.Background(),
		testSeller,
		"idem-short",
		httptransport.RegisterMultiUnitRequest{
			AssetContract: testMultiContract,
			AssetID:       "7",
			Quantity:      6,
			UnitPrice:     2,
			PaymentToken:  testPaymentToken,
		},
	)
	if !errors.Is(err, domainerrors.ErrInsufficientAssetBalance) {
		t.Fatalf("expected insufficient asset balance, got %v", err)
	}
}

func TestRegisterRejectsPaymentTokenMatchingCollection(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 10)

	_, err := f.module.Handler.RegisterMultiUnitHandler(
		context.Background(),
		testSeller,
		"idem-same-token",
		httptransport.RegisterMultiUnitRequest{
			AssetContract: testMultiContract,
			AssetID:       "7",
			Quantity:      2,
			UnitPrice:     2,
			PaymentToken:  testMultiContract,
		},
	)
	if !errors.Is(err, domainerrors.ErrInvalidPaymentToken) {
		t.Fatalf("expected invalid payment token, got %v", err)
	}
}

func TestRegisterUniqueUnknownAsset(t *testing.T) {
	f := newMarketFixture(t)
	f.unique.Mint(testSeller, "7")

	_, err := f.module.Handler.RegisterUniqueHandler(
		context.Background(),
		testSeller,
		"idem-unknown",
		httptransport.RegisterUniqueRequest{
			AssetContract: testUniqueContract,
			AssetID:       "8",
			UnitPrice:     3,
			PaymentToken:  testPaymentToken,
		},
	)
	if !errors.Is(err, domainerrors.ErrAssetNotFound) {
		t.Fatalf("expected asset not found, got %v", err)
	}
}

func TestRegisterUniqueNotOwner(t *testing.T) {
	f := newMarketFixture(t)
	f.unique.Mint("someone-else", "7")

	_, err := f.module.Handler.RegisterUniqueHandler(
		context.Background(),
		testSeller,
		"idem-not-owner",
		httptransport.RegisterUniqueRequest{
			AssetContract: testUniqueContract,
			AssetID:       "7",
			UnitPrice:     3,
			PaymentToken:  testPaymentToken,
		},
	)
	if !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
}

func TestRegisterRejectsSecondActiveListing(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 10)
	f.registerMultiUnit(t, "7", 3, 2)

	_, err := f.module.Handler.RegisterMultiUnitHandler(
		context.Background(),
		testSeller,
		"idem-second",
		httptransport.RegisterMultiUnitRequest{
			AssetContract: testMultiContract,
			AssetID:       "7",
			Quantity:      2,
			UnitPrice:     4,
			PaymentToken:  testPaymentToken,
		},
	)
	if !errors.Is(err, domainerrors.ErrListingAlreadyActive) {
		t.Fatalf("expected listing already active, got %v", err)
	}
}

func TestBuyMultiUnitDecrementsInventory(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 2)
	f.fundBuyer(10)

	resp, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-buy-1",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if err != nil {
		t.Fatalf("buy should succeed: %v", err)
	}
	if resp.Data.TotalCharge != 2 {
		t.Fatalf("expected charge 2, got %d", resp.Data.TotalCharge)
	}
	if resp.Data.RemainingQuantity != 2 || resp.Data.ListingClosed {
		t.Fatalf("expected two units left on an open listing, got %d closed=%v",
			resp.Data.RemainingQuantity, resp.Data.ListingClosed)
	}

	buyerUnits, err := f.multiUnit.BalanceOf(context.Background(), testBuyer, "7")
	if err != nil || buyerUnits != 1 {
		t.Fatalf("expected buyer to hold 1 unit, got %d (%v)", buyerUnits, err)
	}
	sellerFunds, err := f.payment.BalanceOf(context.Background(), testSeller)
	if err != nil || sellerFunds != 2 {
		t.Fatalf("expected seller to receive 2, got %d (%v)", sellerFunds, err)
	}
	if got := f.module.Store.PendingOutboxCount(); got != 2 {
		t.Fatalf("expected registration and purchase events, got %d", got)
	}
}

func TestBuyFinalUnitClosesListing(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 2)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 2, 2)
	f.fundBuyer(10)

	resp, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-buy-all",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     2,
			OfferedTotal: 4,
		},
	)
	if err != nil {
		t.Fatalf("buy should succeed: %v", err)
	}
	if !resp.Data.ListingClosed || resp.Data.RemainingQuantity != 0 {
		t.Fatalf("expected the listing to close, got remaining %d closed=%v",
			resp.Data.RemainingQuantity, resp.Data.ListingClosed)
	}

	_, err = f.module.Handler.GetListingHandler(context.Background(), testMultiContract, "7")
	if !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("expected closed listing lookup to fail, got %v", err)
	}
}

func TestBuyUniqueTransfersOwnership(t *testing.T) {
	f := newMarketFixture(t)
	f.unique.Mint(testSeller, "7")
	f.unique.SetApprovalForAll(testSeller, testOperator, true)
	f.registerUnique(t, "7", 3)
	f.fundBuyer(3)

	resp, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-buy-unique",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 3,
		},
	)
	if err != nil {
		t.Fatalf("buy should succeed: %v", err)
	}
	if resp.Data.AssetKind != "unique" || !resp.Data.ListingClosed {
		t.Fatalf("expected a closed unique sale, got kind %s closed=%v",
			resp.Data.AssetKind, resp.Data.ListingClosed)
	}

	owner, err := f.unique.OwnerOf(context.Background(), "7")
	if err != nil || owner != testBuyer {
		t.Fatalf("expected buyer to own asset 7, got %s (%v)", owner, err)
	}
	sellerFunds, err := f.payment.BalanceOf(context.Background(), testSeller)
	if err != nil || sellerFunds != 3 {
		t.Fatalf("expected seller to receive 3, got %d (%v)", sellerFunds, err)
	}
}

func TestBuyWrongPaymentToken(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 2)
	f.module.Ledgers.RegisterPayment("other-token").Mint(testBuyer, 10)
	f.fundBuyer(10)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-wrong-token",
		httptransport.BuyListingRequest{
			PaymentToken: "other-token",
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if !errors.Is(err, domainerrors.ErrWrongPaymentToken) {
		t.Fatalf("expected wrong payment token, got %v", err)
	}
}

func TestBuyInsufficientAllowance(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 5)
	f.payment.Mint(testBuyer, 100)
	f.payment.Approve(testBuyer, testOperator, 4)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-low-allowance",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 5,
		},
	)
	if !errors.Is(err, domainerrors.ErrPaymentInsufficient) {
		t.Fatalf("expected payment insufficient, got %v", err)
	}
}

func TestBuyOfferBelowCharge(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 5)
	f.fundBuyer(100)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-low-offer",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     2,
			OfferedTotal: 9,
		},
	)
	if !errors.Is(err, domainerrors.ErrPriceMismatch) {
		t.Fatalf("expected price mismatch, got %v", err)
	}
}

func TestBuyWithoutOperatorApproval(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.registerMultiUnit(t, "7", 3, 2)
	f.fundBuyer(10)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-no-approval",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if !errors.Is(err, domainerrors.ErrOperatorNotApproved) {
		t.Fatalf("expected operator not approved, got %v", err)
	}
}

func TestBuyInsufficientInventory(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 2)
	f.fundBuyer(100)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-over-buy",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     5,
			OfferedTotal: 10,
		},
	)
	if !errors.Is(err, domainerrors.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
}

func TestBuyIdempotentReplay(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 2)
	f.fundBuyer(10)

	req := httptransport.BuyListingRequest{
		PaymentToken: testPaymentToken,
		AssetID:      "7",
		Quantity:     1,
		OfferedTotal: 2,
	}
	first, err := f.module.Handler.BuyHandler(context.Background(), testBuyer, "idem-replay", req)
	if err != nil {
		t.Fatalf("first buy should succeed: %v", err)
	}
	second, err := f.module.Handler.BuyHandler(context.Background(), testBuyer, "idem-replay", req)
	if err != nil {
		t.Fatalf("replayed buy should succeed: %v", err)
	}
	if !second.Data.Replayed {
		t.Fatalf("expected replayed response")
	}
	if second.Data.ListingID != first.Data.ListingID || second.Data.TotalCharge != first.Data.TotalCharge {
		t.Fatalf("replay should return the original receipt")
	}

	buyerUnits, err := f.multiUnit.BalanceOf(context.Background(), testBuyer, "7")
	if err != nil || buyerUnits != 1 {
		t.Fatalf("replay must not re-transfer, buyer holds %d (%v)", buyerUnits, err)
	}
	sellerFunds, err := f.payment.BalanceOf(context.Background(), testSeller)
	if err != nil || sellerFunds != 2 {
		t.Fatalf("replay must not re-charge, seller holds %d (%v)", sellerFunds, err)
	}
}

func TestBuyIdempotencyKeyConflict(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 3, 2)
	f.fundBuyer(10)

	_, err := f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-conflict",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if err != nil {
		t.Fatalf("first buy should succeed: %v", err)
	}

	_, err = f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-conflict",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     2,
			OfferedTotal: 4,
		},
	)
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency key conflict, got %v", err)
	}
}

func TestCancelListingBySeller(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.registerMultiUnit(t, "7", 3, 2)

	resp, err := f.module.Handler.CancelHandler(
		context.Background(),
		testSeller,
		"idem-cancel",
		testMultiContract,
		"7",
	)
	if err != nil {
		t.Fatalf("cancel should succeed: %v", err)
	}
	if resp.Data.Listing.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %s", resp.Data.Listing.Status)
	}

	f.fundBuyer(10)
	_, err = f.module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-buy-cancelled",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("expected listing not found after cancel, got %v", err)
	}
}

func TestCancelListingRejectsNonSeller(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 3)
	f.registerMultiUnit(t, "7", 3, 2)

	_, err := f.module.Handler.CancelHandler(
		context.Background(),
		"intruder",
		"idem-cancel-intruder",
		testMultiContract,
		"7",
	)
	if !errors.Is(err, domainerrors.ErrNotSeller) {
		t.Fatalf("expected not seller, got %v", err)
	}
}

func TestListListingsFiltersAndPaginates(t *testing.T) {
	f := newMarketFixture(t)
	for i := 0; i < 5; i++ {
		assetID := fmt.Sprintf("asset-%d", i)
		f.multiUnit.Mint(testSeller, assetID, 10)
		f.registerMultiUnit(t, assetID, 2, 1)
	}

	resp, err := f.module.Handler.ListListingsHandler(context.Background(), httptransport.ListListingsRequest{
		SellerAddress: testSeller,
		Page:          1,
		Limit:         2,
	})
	if err != nil {
		t.Fatalf("list should succeed: %v", err)
	}
	if len(resp.Data.Listings) != 2 {
		t.Fatalf("expected 2 listings on page, got %d", len(resp.Data.Listings))
	}
	if resp.Data.Pagination.Total != 5 || resp.Data.Pagination.Pages != 3 {
		t.Fatalf("expected 5 total over 3 pages, got %d over %d",
			resp.Data.Pagination.Total, resp.Data.Pagination.Pages)
	}
}

func TestConcurrentBuyersSingleUnit(t *testing.T) {
	f := newMarketFixture(t)
	f.multiUnit.Mint(testSeller, "7", 1)
	f.multiUnit.SetApprovalForAll(testSeller, testOperator, true)
	f.registerMultiUnit(t, "7", 1, 2)

	buyers := []string{"buyer-1", "buyer-2", "buyer-3"}
	for _, buyer := range buyers {
		f.payment.Mint(buyer, 10)
		f.payment.Approve(buyer, testOperator, 10)
	}

	var wg sync.WaitGroup
	results := make([]error, len(buyers))
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, buyer string) {
			defer wg.Done()
			_, results[i] = f.module.Handler.BuyHandler(
				context.Background(),
				buyer,
				"idem-race-"+buyer,
				httptransport.BuyListingRequest{
					PaymentToken: testPaymentToken,
					AssetID:      "7",
					Quantity:     1,
					OfferedTotal: 2,
				},
			)
		}(i, buyer)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, domainerrors.ErrListingNotFound) &&
			!errors.Is(err, domainerrors.ErrInsufficientInventory) {
			t.Fatalf("unexpected race loser error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}

	sellerFunds, err := f.payment.BalanceOf(context.Background(), testSeller)
	if err != nil || sellerFunds != 2 {
		t.Fatalf("expected seller paid exactly once, got %d (%v)", sellerFunds, err)
	}
}
