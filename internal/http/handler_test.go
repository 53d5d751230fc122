package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internalhttp "photoledger/internal/http"
	"photoledger/internal/models"
	"photoledger/internal/services"
	"photoledger/internal/store/memstore"

	"github.com/google/uuid"
)

type testEnv struct {
	server *httptest.Server
	store  *memstore.Store
	now    *time.Time

	photographers *services.PhotographerService
	orders        *services.OrderService
	withdrawals   *services.WithdrawalService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memstore.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{store: st, now: &now}
	clock := func() time.Time { return *env.now }

	env.photographers = &services.PhotographerService{Store: st, DefaultBps: 2000, Now: clock}
	env.orders = &services.OrderService{Store: st, HoldPeriod: 30 * 24 * time.Hour, Now: clock}
	env.withdrawals = &services.WithdrawalService{Store: st, MinAmount: 10000, Now: clock}
	balances := &services.BalanceService{Store: st, Now: clock}

	h := internalhttp.NewHandler(env.photographers, env.orders, balances, env.withdrawals)
	env.server = httptest.NewServer(internalhttp.NewServer(h).Router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID, role string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// seedMaturedBalance gives the photographer a realized, matured share of
// 20000 (one 25000 sale at the default rate).
func (e *testEnv) seedMaturedBalance(t *testing.T, pid string) {
	t.Helper()
	ctx := context.Background()
	order, _, err := e.orders.CreateOrder(ctx, "buyer-1", services.CreateOrderInput{
		Subtotal: 25000,
		Total:    25000,
		Items: []services.OrderItemInput{
			{PhotoID: uuid.NewString(), PhotographerID: pid, License: models.LicenseStandard, Price: 25000},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := e.orders.CompleteOrder(ctx, order.OrderID, uuid.NewString(), *e.now); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	*e.now = e.now.Add(31 * 24 * time.Hour)
}

func TestRegisterPhotographerAuthz(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"displayName": "Awa"}

	resp := env.do(t, http.MethodPost, "/photographers", "b1", "buyer", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("buyer register: status %d, want 403", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/photographers", "", "", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous register: status %d, want 401", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/photographers", "adm1", "admin", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin register: status %d, want 201", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["photographerId"] == "" {
		t.Fatal("no photographer id returned")
	}
}

func TestWithdrawalFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.photographers.Register(ctx, "Moussa", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pid := p.PhotographerID
	env.seedMaturedBalance(t, pid)

	// someone else's photographer id is off limits
	resp := env.do(t, http.MethodPost, "/photographers/"+pid+"/withdrawals", "ph-other", "photographer",
		map[string]any{"amount": 15000, "method": "mobile_money"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign create: status %d, want 403", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/photographers/"+pid+"/withdrawals", pid, "photographer",
		map[string]any{"amount": 15000, "method": "mobile_money", "details": map[string]string{"msisdn": "+22670000000"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d, want 201", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	wid, _ := created["withdrawalId"].(string)
	if wid == "" {
		t.Fatal("no withdrawal id returned")
	}

	// over-withdrawal against the reserved remainder
	resp = env.do(t, http.MethodPost, "/photographers/"+pid+"/withdrawals", pid, "photographer",
		map[string]any{"amount": 10000, "method": "mobile_money"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("over-create: status %d, want 409", resp.StatusCode)
	}

	// photographers cannot approve
	resp = env.do(t, http.MethodPost, "/withdrawals/"+wid+"/approve", pid, "photographer", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self-approve: status %d, want 403", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/withdrawals/"+wid+"/approve", "adm1", "admin", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d, want 200", resp.StatusCode)
	}

	// completing without a transaction reference is a validation error
	resp = env.do(t, http.MethodPost, "/withdrawals/"+wid+"/complete", "adm1", "admin", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("complete without ref: status %d, want 400", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/withdrawals/"+wid+"/complete", "adm1", "admin",
		map[string]any{"transactionRef": "pay-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: status %d, want 200", resp.StatusCode)
	}
	completed := decode[map[string]any](t, resp)
	if completed["status"] != "completed" {
		t.Fatalf("status = %v, want completed", completed["status"])
	}

	resp = env.do(t, http.MethodGet, "/photographers/"+pid+"/balance", pid, "photographer", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance: status %d, want 200", resp.StatusCode)
	}
	bal := decode[map[string]any](t, resp)
	if got := bal["available"].(float64); got != 5000 {
		t.Fatalf("available = %v, want 5000", got)
	}
	if got := bal["withdrawn"].(float64); got != 15000 {
		t.Fatalf("withdrawn = %v, want 15000", got)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.photographers.Register(ctx, "Fatou", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	env.seedMaturedBalance(t, p.PhotographerID)
	w, err := env.withdrawals.Create(ctx, p.PhotographerID, 10000, "bank", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := env.do(t, http.MethodPost, "/withdrawals/"+w.WithdrawalID+"/reject", "adm1", "admin",
		map[string]any{"reason": ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reject without reason: status %d, want 400", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/withdrawals/"+w.WithdrawalID+"/reject", "adm1", "admin",
		map[string]any{"reason": "details incomplete"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: status %d, want 200", resp.StatusCode)
	}
}

func TestPaymentWebhookIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.photographers.Register(ctx, "Ibrahim", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	order, _, err := env.orders.CreateOrder(ctx, "buyer-1", services.CreateOrderInput{
		Subtotal: 5000,
		Total:    5000,
		Items: []services.OrderItemInput{
			{PhotoID: uuid.NewString(), PhotographerID: p.PhotographerID, License: models.LicenseStandard, Price: 5000},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	hook := map[string]any{"orderId": order.OrderID, "providerTxId": "cp-tx-1", "status": "completed"}
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/webhooks/payment", "payments", "system", hook)
		body := decode[map[string]any](t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("webhook delivery %d: status %d", i+1, resp.StatusCode)
		}
		if body["status"] != "completed" {
			t.Fatalf("webhook delivery %d: order status %v", i+1, body["status"])
		}
	}

	bal, err := env.store.Balances(ctx, p.PhotographerID, *env.now)
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if bal.Lifetime != 4000 {
		t.Fatalf("lifetime = %d after duplicate webhook, want 4000", bal.Lifetime)
	}

	// buyers may not call the webhook
	resp := env.do(t, http.MethodPost, "/webhooks/payment", "b1", "buyer", hook)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("buyer webhook: status %d, want 403", resp.StatusCode)
	}
}

func TestNotFoundMapping(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/withdrawals/"+uuid.NewString(), "adm1", "admin", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown withdrawal: status %d, want 404", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/photographers/%s/balance", uuid.NewString()), "adm1", "admin", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown photographer balance: status %d, want 404", resp.StatusCode)
	}
}
