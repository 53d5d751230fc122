package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"photoledger/internal/authz"
	"photoledger/internal/models"
	"photoledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Photographers *services.PhotographerService
	Orders        *services.OrderService
	Balances      *services.BalanceService
	Withdrawals   *services.WithdrawalService
}

func NewHandler(
	photographers *services.PhotographerService,
	orders *services.OrderService,
	balances *services.BalanceService,
	withdrawals *services.WithdrawalService,
) *Handler {
	return &Handler{
		Photographers: photographers,
		Orders:        orders,
		Balances:      balances,
		Withdrawals:   withdrawals,
	}
}

func actorFrom(r *http.Request) authz.Actor {
	return authz.Actor{
		ID:   r.Header.Get("X-User-Id"),
		Role: authz.Role(r.Header.Get("X-User-Role")),
	}
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action, res authz.Resource) bool {
	actor := actorFrom(r)
	if actor.ID == "" || actor.Role == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return false
	}
	if !authz.Authorize(actor, action, res) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

var validationErrors = []error{
	services.ErrMissingBuyerID,
	services.ErrMissingOrderID,
	services.ErrMissingProviderRef,
	services.ErrMissingPhotographerID,
	services.ErrMissingDisplayName,
	services.ErrNoItems,
	services.ErrInvalidLicense,
	services.ErrNonPositivePrice,
	services.ErrNegativeAdjustment,
	services.ErrSubtotalMismatch,
	services.ErrTotalMismatch,
	services.ErrInvalidCommissionRate,
	services.ErrNonPositiveAmount,
	services.ErrAmountBelowMinimum,
	services.ErrMissingMethod,
	services.ErrReasonRequired,
	services.ErrTransactionRefRequired,
}

var preconditionErrors = []error{
	services.ErrOrderNotPending,
	services.ErrWithdrawalNotPending,
	services.ErrWithdrawalNotApproved,
	services.ErrInsufficientFunds,
	services.ErrLedgerShortfall,
}

var notFoundErrors = []error{
	services.ErrOrderNotFound,
	services.ErrPhotographerNotFound,
	services.ErrWithdrawalNotFound,
}

func writeServiceError(w http.ResponseWriter, err error) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
	}
	if errors.Is(err, services.ErrConflict) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

type registerPhotographerRequest struct {
	DisplayName   string `json:"displayName"`
	CommissionBps *int32 `json:"commissionBps,omitempty"`
}

type photographerResponse struct {
	PhotographerID string `json:"photographerId"`
	DisplayName    string `json:"displayName"`
	CommissionBps  int32  `json:"commissionBps"`
	CreatedAt      string `json:"createdAt"`
}

func (h *Handler) RegisterPhotographer(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionPhotographerRegister, authz.Resource{}) {
		return
	}
	var req registerPhotographerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	p, err := h.Photographers.Register(r.Context(), req.DisplayName, req.CommissionBps)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, photographerResponse{
		PhotographerID: p.PhotographerID,
		DisplayName:    p.DisplayName,
		CommissionBps:  p.CommissionBps,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	})
}

type orderItemRequest struct {
	PhotoID        string `json:"photoId"`
	PhotographerID string `json:"photographerId"`
	License        string `json:"license"`
	Price          int64  `json:"price"`
}

type createOrderRequest struct {
	Subtotal int64              `json:"subtotal"`
	Tax      int64              `json:"tax"`
	Discount int64              `json:"discount"`
	Total    int64              `json:"total"`
	Items    []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ItemID             string `json:"itemId"`
	PhotoID            string `json:"photoId"`
	PhotographerID     string `json:"photographerId"`
	License            string `json:"license"`
	Price              int64  `json:"price"`
	PhotographerAmount *int64 `json:"photographerAmount,omitempty"`
	PlatformFee        *int64 `json:"platformFee,omitempty"`
	AvailableAt        string `json:"availableAt,omitempty"`
	Paid               bool   `json:"paid"`
	PayoutID           string `json:"payoutId,omitempty"`
}

type orderResponse struct {
	OrderID     string              `json:"orderId"`
	BuyerID     string              `json:"buyerId"`
	Subtotal    int64               `json:"subtotal"`
	Tax         int64               `json:"tax"`
	Discount    int64               `json:"discount"`
	Total       int64               `json:"total"`
	Status      string              `json:"status"`
	CompletedAt string              `json:"completedAt,omitempty"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

func orderToResponse(order *models.Order, items []*models.OrderItem) orderResponse {
	resp := orderResponse{
		OrderID:  order.OrderID,
		BuyerID:  order.BuyerID,
		Subtotal: order.Subtotal,
		Tax:      order.Tax,
		Discount: order.Discount,
		Total:    order.Total,
		Status:   string(order.Status),
	}
	if order.CompletedAt != nil {
		resp.CompletedAt = order.CompletedAt.Format(time.RFC3339)
	}
	for _, it := range items {
		ir := orderItemResponse{
			ItemID:             it.ItemID,
			PhotoID:            it.PhotoID,
			PhotographerID:     it.PhotographerID,
			License:            string(it.License),
			Price:              it.Price,
			PhotographerAmount: it.PhotographerAmount,
			PlatformFee:        it.PlatformFee,
			Paid:               it.Paid,
		}
		if it.AvailableAt != nil {
			ir.AvailableAt = it.AvailableAt.Format(time.RFC3339)
		}
		if it.PayoutID != nil {
			ir.PayoutID = *it.PayoutID
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionOrderCreate, authz.Resource{}) {
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in := services.CreateOrderInput{
		Subtotal: req.Subtotal,
		Tax:      req.Tax,
		Discount: req.Discount,
		Total:    req.Total,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.OrderItemInput{
			PhotoID:        it.PhotoID,
			PhotographerID: it.PhotographerID,
			License:        models.LicenseTier(it.License),
			Price:          it.Price,
		})
	}
	order, items, err := h.Orders.CreateOrder(r.Context(), actorFrom(r).ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderToResponse(order, items))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	order, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !h.authorize(w, r, authz.ActionOrderView, authz.Resource{OwnerID: order.BuyerID}) {
		return
	}
	items, err := h.Orders.ListItems(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order, items))
}

type paymentWebhookRequest struct {
	OrderID      string `json:"orderId"`
	ProviderTxID string `json:"providerTxId"`
	Status       string `json:"status"`
	CompletedAt  string `json:"completedAt,omitempty"`
}

// PaymentWebhook handles the provider's payment notifications. Signature
// verification happens upstream at the gateway; delivery is at least once, so
// replays of the same provider transaction id return the current order state.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionOrderSettle, authz.Resource{}) {
		return
	}
	var req paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var completedAt time.Time
	if req.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CompletedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid completedAt")
			return
		}
		completedAt = t
	}

	var order *models.Order
	var err error
	switch req.Status {
	case string(models.OrderCompleted):
		order, err = h.Orders.CompleteOrder(r.Context(), req.OrderID, req.ProviderTxID, completedAt)
	case string(models.OrderFailed):
		order, err = h.Orders.FailOrder(r.Context(), req.OrderID)
	case string(models.OrderRefunded):
		order, err = h.Orders.RefundOrder(r.Context(), req.OrderID)
	default:
		writeError(w, http.StatusBadRequest, "unknown payment status")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order, nil))
}

type balanceResponse struct {
	PhotographerID string `json:"photographerId"`
	Available      int64  `json:"available"`
	Pending        int64  `json:"pending"`
	Reserved       int64  `json:"reserved"`
	Withdrawn      int64  `json:"withdrawn"`
	Lifetime       int64  `json:"lifetime"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	photographerID := chi.URLParam(r, "photographerId")
	if !h.authorize(w, r, authz.ActionBalanceView, authz.Resource{OwnerID: photographerID}) {
		return
	}
	bal, err := h.Balances.Summary(r.Context(), photographerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		PhotographerID: photographerID,
		Available:      bal.Available,
		Pending:        bal.Pending,
		Reserved:       bal.Reserved,
		Withdrawn:      bal.Withdrawn,
		Lifetime:       bal.Lifetime,
	})
}

type createWithdrawalRequest struct {
	Amount  int64             `json:"amount"`
	Method  string            `json:"method"`
	Details map[string]string `json:"details,omitempty"`
}

type withdrawalResponse struct {
	WithdrawalID   string            `json:"withdrawalId"`
	PhotographerID string            `json:"photographerId"`
	Amount         int64             `json:"amount"`
	Status         string            `json:"status"`
	Method         string            `json:"method"`
	Details        map[string]string `json:"details,omitempty"`
	RejectReason   string            `json:"rejectReason,omitempty"`
	AdminRef       string            `json:"adminRef,omitempty"`
	ProcessedAt    string            `json:"processedAt,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

func withdrawalToResponse(w *models.Withdrawal) withdrawalResponse {
	resp := withdrawalResponse{
		WithdrawalID:   w.WithdrawalID,
		PhotographerID: w.PhotographerID,
		Amount:         w.Amount,
		Status:         string(w.Status),
		Method:         w.Method,
		Details:        w.Details,
		CreatedAt:      w.CreatedAt.Format(time.RFC3339),
	}
	if w.RejectReason != nil {
		resp.RejectReason = *w.RejectReason
	}
	if w.AdminRef != nil {
		resp.AdminRef = *w.AdminRef
	}
	if w.ProcessedAt != nil {
		resp.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	photographerID := chi.URLParam(r, "photographerId")
	if !h.authorize(w, r, authz.ActionWithdrawalCreate, authz.Resource{OwnerID: photographerID}) {
		return
	}
	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	wd, err := h.Withdrawals.Create(r.Context(), photographerID, req.Amount, req.Method, req.Details)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, withdrawalToResponse(wd))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	photographerID := chi.URLParam(r, "photographerId")
	if !h.authorize(w, r, authz.ActionWithdrawalList, authz.Resource{OwnerID: photographerID}) {
		return
	}
	list, err := h.Withdrawals.List(r.Context(), photographerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]withdrawalResponse, 0, len(list))
	for _, wd := range list {
		out = append(out, withdrawalToResponse(wd))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Withdrawals.Get(r.Context(), chi.URLParam(r, "withdrawalId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !h.authorize(w, r, authz.ActionWithdrawalView, authz.Resource{OwnerID: wd.PhotographerID}) {
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToResponse(wd))
}

func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID := chi.URLParam(r, "withdrawalId")
	wd, err := h.Withdrawals.Get(r.Context(), withdrawalID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !h.authorize(w, r, authz.ActionWithdrawalCancel, authz.Resource{OwnerID: wd.PhotographerID}) {
		return
	}
	if err := h.Withdrawals.Cancel(r.Context(), withdrawalID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type approveWithdrawalRequest struct {
	AdminRef string `json:"adminRef,omitempty"`
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionWithdrawalApprove, authz.Resource{}) {
		return
	}
	// body is optional on approve
	var req approveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	wd, err := h.Withdrawals.Approve(r.Context(), chi.URLParam(r, "withdrawalId"), req.AdminRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToResponse(wd))
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionWithdrawalReject, authz.Resource{}) {
		return
	}
	var req rejectWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	wd, err := h.Withdrawals.Reject(r.Context(), chi.URLParam(r, "withdrawalId"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToResponse(wd))
}

type completeWithdrawalRequest struct {
	TransactionRef string `json:"transactionRef"`
}

func (h *Handler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, authz.ActionWithdrawalComplete, authz.Resource{}) {
		return
	}
	var req completeWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	wd, err := h.Withdrawals.Complete(r.Context(), chi.URLParam(r, "withdrawalId"), req.TransactionRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToResponse(wd))
}
