package marketplaceservice

import (
	"log/slog"
	"time"

	httpadapter "tokenmart/contexts/trading-core/marketplace-service/adapters/http"
	"tokenmart/contexts/trading-core/marketplace-service/adapters/memory"
	"tokenmart/contexts/trading-core/marketplace-service/application"
	"tokenmart/contexts/trading-core/marketplace-service/application/commands"
	"tokenmart/contexts/trading-core/marketplace-service/application/queries"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

// Module is the composition surface for the marketplace core.
// Runtime wiring should consume Handler; Store and Ledgers are exposed for
// tests/inspection when the in-memory bootstrap is used.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Ledgers *memory.Ledgers
}

type Dependencies struct {
	Listings        ports.ListingRepository
	Ledgers         ports.LedgerResolver
	Idempotency     ports.IdempotencyStore
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	OperatorAddress string
	IdempotencyTTL  time.Duration
	Logger          *slog.Logger
}

// NewModule wires the marketplace use cases against explicit ports. All
// mutating use cases share one keyed mutex so operations on the same listing
// key never interleave their read-validate-mutate sequence.
func NewModule(deps Dependencies) Module {
	locks := application.NewKeyedMutex()

	registerMultiUnit := commands.RegisterMultiUnitListingUseCase{
		Listings:       deps.Listings,
		Ledgers:        deps.Ledgers,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		Locks:          locks,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	registerUnique := commands.RegisterUniqueListingUseCase{
		Listings:       deps.Listings,
		Ledgers:        deps.Ledgers,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		Locks:          locks,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	buy := commands.BuyListingUseCase{
		Listings:        deps.Listings,
		Ledgers:         deps.Ledgers,
		Idempotency:     deps.Idempotency,
		Clock:           deps.Clock,
		IDGenerator:     deps.IDGenerator,
		Locks:           locks,
		OperatorAddress: deps.OperatorAddress,
		IdempotencyTTL:  deps.IdempotencyTTL,
		Logger:          deps.Logger,
	}
	cancel := commands.CancelListingUseCase{
		Listings:       deps.Listings,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		Locks:          locks,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}

	handler := httpadapter.Handler{
		RegisterMultiUnit: registerMultiUnit,
		RegisterUnique:    registerUnique,
		Buy:               buy,
		Cancel:            cancel,
		GetListing: queries.GetListingUseCase{
			Listings: deps.Listings,
			Logger:   deps.Logger,
		},
		FindByAssetID: queries.FindListingByAssetIDUseCase{
			Listings: deps.Listings,
			Logger:   deps.Logger,
		},
		ListListings: queries.ListListingsUseCase{
			Listings: deps.Listings,
			Logger:   deps.Logger,
		},
		Logger: deps.Logger,
	}

	return Module{Handler: handler}
}

// NewInMemoryModule wires the marketplace against in-memory adapters and
// in-memory external ledgers. This is the developer/test bootstrap path.
func NewInMemoryModule(operatorAddress string, logger *slog.Logger) Module {
	store := memory.NewStore()
	ledgers := memory.NewLedgers()
	module := NewModule(Dependencies{
		Listings:        store,
		Ledgers:         ledgers,
		Idempotency:     store,
		Clock:           store,
		IDGenerator:     store,
		OperatorAddress: operatorAddress,
		IdempotencyTTL:  7 * 24 * time.Hour,
		Logger:          logger,
	})
	module.Store = store
	module.Ledgers = ledgers
	return module
}
