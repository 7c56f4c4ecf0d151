package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ListingDTO struct {
	ListingID         string `json:"listing_id"`
	SellerAddress     string `json:"seller_address"`
	AssetContract     string `json:"asset_contract"`
	AssetID           string `json:"asset_id"`
	AssetKind         string `json:"asset_kind"`
	TotalQuantity     int64  `json:"total_quantity"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	UnitPrice         int64  `json:"unit_price"`
	PaymentToken      string `json:"payment_token"`
	ExtraData         string `json:"extra_data,omitempty"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type RegisterMultiUnitRequest struct {
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	PaymentToken  string `json:"payment_token"`
	ExtraData     string `json:"extra_data,omitempty"`
}

type RegisterUniqueRequest struct {
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	UnitPrice     int64  `json:"unit_price"`
	PaymentToken  string `json:"payment_token"`
	ExtraData     string `json:"extra_data,omitempty"`
}

type RegisterListingResponse struct {
	Status string `json:"status"`
	Data   struct {
		Listing  ListingDTO `json:"listing"`
		Replayed bool       `json:"replayed,omitempty"`
	} `json:"data"`
}

type BuyListingRequest struct {
	PaymentToken string `json:"payment_token"`
	AssetID      string `json:"asset_id"`
	Quantity     int64  `json:"quantity"`
	OfferedTotal int64  `json:"offered_total"`
}

type BuyListingResponse struct {
	Status string `json:"status"`
	Data   struct {
		ListingID         string `json:"listing_id"`
		Buyer             string `json:"buyer"`
		Seller            string `json:"seller"`
		AssetContract     string `json:"asset_contract"`
		AssetID           string `json:"asset_id"`
		AssetKind         string `json:"asset_kind"`
		Quantity          int64  `json:"quantity"`
		UnitPrice         int64  `json:"unit_price"`
		TotalCharge       int64  `json:"total_charge"`
		RemainingQuantity int64  `json:"remaining_quantity"`
		ListingClosed     bool   `json:"listing_closed"`
		SettledAt         string `json:"settled_at"`
		Replayed          bool   `json:"replayed,omitempty"`
	} `json:"data"`
}

type ListListingsRequest struct {
	SellerAddress string
	AssetContract string
	Kind          string
	Page          int
	Limit         int
}

type ListListingsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Listings   []ListingDTO `json:"listings"`
		Pagination struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Total int `json:"total"`
			Pages int `json:"pages"`
		} `json:"pagination"`
	} `json:"data"`
}

type GetListingResponse struct {
	Status string `json:"status"`
	Data   struct {
		Listing ListingDTO `json:"listing"`
	} `json:"data"`
}

type CancelListingResponse struct {
	Status string `json:"status"`
	Data   struct {
		Listing  ListingDTO `json:"listing"`
		Replayed bool       `json:"replayed,omitempty"`
	} `json:"data"`
}
