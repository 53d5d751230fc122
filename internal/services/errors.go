package services

import "errors"

// Validation errors: rejected before any state change.
var (
	ErrMissingBuyerID         = errors.New("missing buyer id")
	ErrMissingOrderID         = errors.New("missing order id")
	ErrMissingProviderRef     = errors.New("missing provider transaction id")
	ErrMissingPhotographerID  = errors.New("missing photographer id")
	ErrMissingDisplayName     = errors.New("missing display name")
	ErrNoItems                = errors.New("order has no items")
	ErrInvalidLicense         = errors.New("invalid license tier")
	ErrNonPositivePrice       = errors.New("item price must be positive")
	ErrNegativeAdjustment     = errors.New("tax and discount must not be negative")
	ErrSubtotalMismatch       = errors.New("item prices do not sum to subtotal")
	ErrTotalMismatch          = errors.New("subtotal, tax and discount do not sum to total")
	ErrInvalidCommissionRate  = errors.New("commission rate out of range")
	ErrNonPositiveAmount      = errors.New("withdrawal amount must be positive")
	ErrAmountBelowMinimum     = errors.New("withdrawal amount below minimum")
	ErrMissingMethod          = errors.New("missing payment method")
	ErrReasonRequired         = errors.New("rejection reason required")
	ErrTransactionRefRequired = errors.New("transaction reference required")
)

// Precondition errors: the entity exists but is not in a state that admits
// the requested transition.
var (
	ErrOrderNotPending       = errors.New("order is not pending")
	ErrWithdrawalNotPending  = errors.New("withdrawal is not pending")
	ErrWithdrawalNotApproved = errors.New("withdrawal is not approved")
	ErrInsufficientFunds     = errors.New("amount exceeds available balance")
	ErrLedgerShortfall       = errors.New("unpaid credits do not cover withdrawal amount")
)

// Not-found errors.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrPhotographerNotFound = errors.New("photographer not found")
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
)

// ErrConflict reports a concurrency conflict on a photographer's ledger after
// retries were exhausted. The operation is safe to retry.
var ErrConflict = errors.New("ledger busy, retry")
