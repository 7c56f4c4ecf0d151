package errors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different request")

	// Registration failures.
	ErrInsufficientAssetBalance = errors.New("not having required number of assets")
	ErrAssetNotFound            = errors.New("invalid asset id")
	ErrNotOwner                 = errors.New("caller does not own the asset")
	ErrInvalidPaymentToken      = errors.New("payment token must differ from the asset contract")
	ErrListingAlreadyActive     = errors.New("asset already has an active listing")

	// Settlement failures.
	ErrListingNotFound       = errors.New("listing not found")
	ErrInsufficientInventory = errors.New("requested quantity exceeds remaining inventory")
	ErrPaymentInsufficient   = errors.New("payment balance or allowance does not cover the charge")
	ErrWrongPaymentToken     = errors.New("payment token does not match the listing")
	ErrPriceMismatch         = errors.New("offered payment is below the computed charge")
	ErrOperatorNotApproved   = errors.New("marketplace is not approved to transfer the asset")
	ErrTransferFailed        = errors.New("external ledger refused the transfer")

	// Cancellation failures.
	ErrNotSeller = errors.New("only the seller may cancel the listing")

	// Unknown collaborator references.
	ErrLedgerNotFound = errors.New("no ledger registered for the given reference")
)
