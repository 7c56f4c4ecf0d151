package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/application/commands"
	"tokenmart/contexts/trading-core/marketplace-service/application/queries"
	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
	httptransport "tokenmart/contexts/trading-core/marketplace-service/transport/http"
)

type Handler struct {
	RegisterMultiUnit commands.RegisterMultiUnitListingUseCase
	RegisterUnique    commands.RegisterUniqueListingUseCase
	Buy               commands.BuyListingUseCase
	Cancel            commands.CancelListingUseCase
	GetListing        queries.GetListingUseCase
	FindByAssetID     queries.FindListingByAssetIDUseCase
	ListListings      queries.ListListingsUseCase
	Logger            *slog.Logger
}

func (h Handler) RegisterMultiUnitHandler(
	ctx context.Context,
	sellerAddress string,
	idempotencyKey string,
	req httptransport.RegisterMultiUnitRequest,
) (httptransport.RegisterListingResponse, error) {
	result, err := h.RegisterMultiUnit.Execute(ctx, commands.RegisterMultiUnitListingCommand{
		SellerAddress:  sellerAddress,
		AssetContract:  req.AssetContract,
		AssetID:        req.AssetID,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		PaymentToken:   req.PaymentToken,
		ExtraData:      req.ExtraData,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.RegisterListingResponse{}, err
	}
	resp := httptransport.RegisterListingResponse{Status: "success"}
	resp.Data.Listing = toListingDTO(result.Listing)
	resp.Data.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) RegisterUniqueHandler(
	ctx context.Context,
	sellerAddress string,
	idempotencyKey string,
	req httptransport.RegisterUniqueRequest,
) (httptransport.RegisterListingResponse, error) {
	result, err := h.RegisterUnique.Execute(ctx, commands.RegisterUniqueListingCommand{
		SellerAddress:  sellerAddress,
		AssetContract:  req.AssetContract,
		AssetID:        req.AssetID,
		UnitPrice:      req.UnitPrice,
		PaymentToken:   req.PaymentToken,
		ExtraData:      req.ExtraData,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.RegisterListingResponse{}, err
	}
	resp := httptransport.RegisterListingResponse{Status: "success"}
	resp.Data.Listing = toListingDTO(result.Listing)
	resp.Data.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) BuyHandler(
	ctx context.Context,
	buyerAddress string,
	idempotencyKey string,
	req httptransport.BuyListingRequest,
) (httptransport.BuyListingResponse, error) {
	result, err := h.Buy.Execute(ctx, commands.BuyListingCommand{
		BuyerAddress:   buyerAddress,
		PaymentToken:   req.PaymentToken,
		AssetID:        req.AssetID,
		Quantity:       req.Quantity,
		OfferedTotal:   req.OfferedTotal,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.BuyListingResponse{}, err
	}
	receipt := result.Receipt
	resp := httptransport.BuyListingResponse{Status: "success"}
	resp.Data.ListingID = receipt.ListingID
	resp.Data.Buyer = receipt.Buyer
	resp.Data.Seller = receipt.Seller
	resp.Data.AssetContract = receipt.AssetContract
	resp.Data.AssetID = receipt.AssetID
	resp.Data.AssetKind = string(receipt.AssetKind)
	resp.Data.Quantity = receipt.Quantity
	resp.Data.UnitPrice = receipt.UnitPrice
	resp.Data.TotalCharge = receipt.TotalCharge
	resp.Data.RemainingQuantity = receipt.RemainingQuantity
	resp.Data.ListingClosed = receipt.ListingClosed
	resp.Data.SettledAt = receipt.SettledAt.UTC().Format(time.RFC3339)
	resp.Data.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) CancelHandler(
	ctx context.Context,
	sellerAddress string,
	idempotencyKey string,
	assetContract string,
	assetID string,
) (httptransport.CancelListingResponse, error) {
	result, err := h.Cancel.Execute(ctx, commands.CancelListingCommand{
		SellerAddress:  sellerAddress,
		AssetContract:  assetContract,
		AssetID:        assetID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CancelListingResponse{}, err
	}
	resp := httptransport.CancelListingResponse{Status: "success"}
	resp.Data.Listing = toListingDTO(result.Listing)
	resp.Data.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) GetListingHandler(
	ctx context.Context,
	assetContract string,
	assetID string,
) (httptransport.GetListingResponse, error) {
	listing, err := h.GetListing.Execute(ctx, assetContract, assetID)
	if err != nil {
		return httptransport.GetListingResponse{}, err
	}
	resp := httptransport.GetListingResponse{Status: "success"}
	resp.Data.Listing = toListingDTO(listing)
	return resp, nil
}

func (h Handler) FindByAssetIDHandler(
	ctx context.Context,
	assetID string,
) (httptransport.GetListingResponse, error) {
	listing, err := h.FindByAssetID.Execute(ctx, assetID)
	if err != nil {
		return httptransport.GetListingResponse{}, err
	}
	resp := httptransport.GetListingResponse{Status: "success"}
	resp.Data.Listing = toListingDTO(listing)
	return resp, nil
}

func (h Handler) ListListingsHandler(
	ctx context.Context,
	req httptransport.ListListingsRequest,
) (httptransport.ListListingsResponse, error) {
	items, total, err := h.ListListings.Execute(ctx, ports.ListingFilter{
		SellerAddress: req.SellerAddress,
		AssetContract: req.AssetContract,
		Kind:          entities.AssetKind(req.Kind),
		Page:          req.Page,
		Limit:         req.Limit,
	})
	if err != nil {
		return httptransport.ListListingsResponse{}, err
	}

	resp := httptransport.ListListingsResponse{Status: "success"}
	resp.Data.Listings = make([]httptransport.ListingDTO, 0, len(items))
	for _, item := range items {
		resp.Data.Listings = append(resp.Data.Listings, toListingDTO(item))
	}
	resp.Data.Pagination.Page = req.Page
	if resp.Data.Pagination.Page <= 0 {
		resp.Data.Pagination.Page = 1
	}
	resp.Data.Pagination.Limit = req.Limit
	if resp.Data.Pagination.Limit <= 0 {
		resp.Data.Pagination.Limit = 20
	}
	resp.Data.Pagination.Total = total
	resp.Data.Pagination.Pages = total / resp.Data.Pagination.Limit
	if total%resp.Data.Pagination.Limit != 0 {
		resp.Data.Pagination.Pages++
	}
	if resp.Data.Pagination.Pages == 0 {
		resp.Data.Pagination.Pages = 1
	}
	return resp, nil
}

func toListingDTO(listing entities.Listing) httptransport.ListingDTO {
	return httptransport.ListingDTO{
		ListingID:         listing.ListingID,
		SellerAddress:     listing.SellerAddress,
		AssetContract:     listing.AssetContract,
		AssetID:           listing.AssetID,
		AssetKind:         string(listing.AssetKind),
		TotalQuantity:     listing.TotalQuantity,
		RemainingQuantity: listing.RemainingQuantity,
		UnitPrice:         listing.UnitPrice,
		PaymentToken:      listing.PaymentToken,
		ExtraData:         listing.ExtraData,
		Status:            string(listing.Status),
		CreatedAt:         listing.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         listing.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
