package queries

import (
	"context"
	"log/slog"
	"strings"

	application "tokenmart/contexts/trading-core/marketplace-service/application"
	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

type GetListingUseCase struct {
	Listings ports.ListingRepository
	Logger   *slog.Logger
}

func (u GetListingUseCase) Execute(ctx context.Context, assetContract string, assetID string) (entities.Listing, error) {
	assetContract = strings.TrimSpace(assetContract)
	assetID = strings.TrimSpace(assetID)
	if assetContract == "" || assetID == "" {
		return entities.Listing{}, domainerrors.ErrInvalidRequest
	}
	return u.Listings.GetListing(ctx, assetContract, assetID)
}

// FindListingByAssetIDUseCase resolves the active listing for an asset id,
// matching the settlement engine's lookup surface.
type FindListingByAssetIDUseCase struct {
	Listings ports.ListingRepository
	Logger   *slog.Logger
}

func (u FindListingByAssetIDUseCase) Execute(ctx context.Context, assetID string) (entities.Listing, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return entities.Listing{}, domainerrors.ErrInvalidRequest
	}
	listing, err := u.Listings.FindListingByAssetID(ctx, assetID)
	if err != nil {
		application.ResolveLogger(u.Logger).Debug("listing lookup missed",
			"event", "marketplace_listing_lookup_missed",
			"module", "trading-core/marketplace-service",
			"layer", "application",
			"asset_id", assetID,
		)
		return entities.Listing{}, err
	}
	return listing, nil
}
