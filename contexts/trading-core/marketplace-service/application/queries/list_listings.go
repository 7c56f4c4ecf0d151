package queries

import (
	"context"
	"log/slog"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

type ListListingsUseCase struct {
	Listings ports.ListingRepository
	Logger   *slog.Logger
}

func (u ListListingsUseCase) Execute(ctx context.Context, filter ports.ListingFilter) ([]entities.Listing, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return u.Listings.ListListings(ctx, filter)
}
