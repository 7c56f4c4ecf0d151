package entities

import "time"

type AssetKind string

const (
	AssetKindMultiUnit AssetKind = "multi_unit"
	AssetKindUnique    AssetKind = "unique"
)

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSoldOut   ListingStatus = "sold_out"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// Listing is one active sale offer. The registry owns the value exclusively;
// only settlement mutates RemainingQuantity.
type Listing struct {
	ListingID         string
	SellerAddress     string
	AssetContract     string
	AssetID           string
	AssetKind         AssetKind
	TotalQuantity     int64
	RemainingQuantity int64
	UnitPrice         int64
	PaymentToken      string
	ExtraData         string
	Status            ListingStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Key identifies a listing by asset identity. At most one active listing
// exists per key at any time.
func (l Listing) Key() string {
	return l.AssetContract + "/" + l.AssetID
}

func (l Listing) IsActive() bool {
	return l.Status == ListingStatusActive && l.RemainingQuantity > 0
}

// IsSellable reports whether the requested quantity can still be served.
func (l Listing) IsSellable(quantity int64) bool {
	return l.IsActive() && quantity > 0 && quantity <= l.RemainingQuantity
}
