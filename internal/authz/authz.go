package authz

type Role string

const (
	RoleAdmin        Role = "admin"
	RolePhotographer Role = "photographer"
	RoleBuyer        Role = "buyer"
	RoleSystem       Role = "system"
)

type Actor struct {
	ID   string
	Role Role
}

type Action string

const (
	ActionOrderCreate          Action = "order.create"
	ActionOrderView            Action = "order.view"
	ActionOrderSettle          Action = "order.settle"
	ActionBalanceView          Action = "balance.view"
	ActionPhotographerRegister Action = "photographer.register"

	ActionWithdrawalCreate   Action = "withdrawal.create"
	ActionWithdrawalCancel   Action = "withdrawal.cancel"
	ActionWithdrawalView     Action = "withdrawal.view"
	ActionWithdrawalList     Action = "withdrawal.list"
	ActionWithdrawalApprove  Action = "withdrawal.approve"
	ActionWithdrawalReject   Action = "withdrawal.reject"
	ActionWithdrawalComplete Action = "withdrawal.complete"
)

// Resource names what the action targets. OwnerID is empty for resources
// without an owner (for example order settlement via webhook).
type Resource struct {
	OwnerID string
}

// Authorize is the single authorization decision point: admins manage
// withdrawals and may view anything, photographers act on their own
// withdrawals and balance, buyers create and view their own orders, and the
// system role settles orders. Everything else is denied.
func Authorize(actor Actor, action Action, res Resource) bool {
	switch actor.Role {
	case RoleAdmin:
		switch action {
		case ActionWithdrawalApprove, ActionWithdrawalReject, ActionWithdrawalComplete,
			ActionWithdrawalView, ActionWithdrawalList,
			ActionOrderView, ActionBalanceView, ActionPhotographerRegister:
			return true
		}
	case RoleSystem:
		switch action {
		case ActionOrderSettle, ActionOrderView:
			return true
		}
	case RolePhotographer:
		switch action {
		case ActionWithdrawalCreate, ActionWithdrawalCancel,
			ActionWithdrawalView, ActionWithdrawalList, ActionBalanceView:
			return actor.ID != "" && actor.ID == res.OwnerID
		}
	case RoleBuyer:
		switch action {
		case ActionOrderCreate:
			return actor.ID != ""
		case ActionOrderView:
			return actor.ID != "" && actor.ID == res.OwnerID
		}
	}
	return false
}
