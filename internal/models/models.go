package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderRefunded  OrderStatus = "refunded"
)

type LicenseTier string

const (
	LicenseStandard LicenseTier = "standard"
	LicenseExtended LicenseTier = "extended"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

type Photographer struct {
	PhotographerID string
	DisplayName    string
	CommissionBps  int32
	CreatedAt      time.Time
}

type Order struct {
	OrderID     string
	BuyerID     string
	Subtotal    int64
	Tax         int64
	Discount    int64
	Total       int64
	Status      OrderStatus
	ProviderRef *string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is one sold photo-license unit. Split columns stay null until the
// parent order completes; the split is a snapshot and is never recomputed.
type OrderItem struct {
	ItemID             string
	OrderID            string
	PhotoID            string
	PhotographerID     string
	License            LicenseTier
	Price              int64
	PhotographerAmount *int64
	PlatformFee        *int64
	CommissionBps      *int32
	AvailableAt        *time.Time
	Paid               bool
	PaidAt             *time.Time
	PayoutID           *string
	CreatedAt          time.Time
}

// Carryover is the remainder credit written back when a payout consumes more
// credit than the withdrawal amount. It is available immediately.
type Carryover struct {
	CarryoverID    string
	PhotographerID string
	SourcePayoutID string
	Amount         int64
	AvailableAt    time.Time
	Paid           bool
	PaidAt         *time.Time
	PayoutID       *string
	CreatedAt      time.Time
}

type Withdrawal struct {
	WithdrawalID   string
	PhotographerID string
	Amount         int64
	Status         WithdrawalStatus
	Method         string
	Details        map[string]string
	RejectReason   *string
	AdminRef       *string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentEvent is one provider completion notification, keyed by the provider
// transaction id so replays of the same notification are no-ops.
type PaymentEvent struct {
	ProviderTxID string
	OrderID      string
	Status       string
	ReceivedAt   time.Time
}

// ItemSplit carries the persisted outcome of the commission split for one
// line item at order completion.
type ItemSplit struct {
	ItemID             string
	PhotographerAmount int64
	PlatformFee        int64
	CommissionBps      int32
	AvailableAt        time.Time
}

type CreditKind string

const (
	CreditSale      CreditKind = "sale"
	CreditCarryover CreditKind = "carryover"
)

// CreditEntry is one unpaid, matured credit eligible to fund a payout.
type CreditEntry struct {
	Kind        CreditKind
	ID          string
	Amount      int64
	AvailableAt time.Time
}

// BalanceSummary is a snapshot of one photographer's ledger. Available already
// excludes Reserved (open withdrawal amounts). At rest
// Available + Pending + Withdrawn == Lifetime; with withdrawals in flight the
// reserved amount sits on the left side too.
type BalanceSummary struct {
	Available int64
	Pending   int64
	Reserved  int64
	Withdrawn int64
	Lifetime  int64
}
