package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/ledger"
	"github.com/mmeshcher/redeem-system/internal/middleware"
	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/oracle"
	"github.com/mmeshcher/redeem-system/internal/store"
)

const testAdminKey = "test-admin-key"

type stubOracle struct {
	valid  bool
	msg    string
	parsed []oracle.ImportedProduct
}

func (s *stubOracle) ValidateIdentifier(ctx context.Context, playerID string) oracle.ValidationResult {
	return oracle.ValidationResult{IsValid: s.valid, Message: s.msg}
}

func (s *stubOracle) ParseBulkImport(ctx context.Context, rawText string) []oracle.ImportedProduct {
	return s.parsed
}

type testAPI struct {
	ledger *ledger.Ledger
	store  *store.Memory
	router http.Handler
}

func newTestAPI(t *testing.T, o *stubOracle) *testAPI {
	t.Helper()

	s := store.NewMemory()
	ctx := context.Background()

	if err := s.SaveProducts(ctx, []model.Product{
		{ID: "p1", Name: "60 UC", PriceCents: 500, RedeemCodes: []string{"UC60-A1"}},
		{ID: "p2", Name: "325 UC", PriceCents: 2500, RedeemCodes: nil},
	}); err != nil {
		t.Fatalf("seed products: %v", err)
	}
	if err := s.SaveProfile(ctx, model.UserProfile{ID: "user_001", Name: "Demo Client", BalanceCents: 1000}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	l := ledger.New(s)
	h := NewHandler(l, o, zap.NewNop(), middleware.NewAdminMiddleware(testAdminKey))

	return &testAPI{ledger: l, store: s, router: h.SetupRouter()}
}

func (a *testAPI) do(t *testing.T, method, target string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestGetProducts(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodGet, "/api/products", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var views []productView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d products, want 2", len(views))
	}
	if views[0].Price != 5.00 {
		t.Fatalf("price = %v, want 5.00", views[0].Price)
	}
	if views[0].Stock != 1 || views[1].Stock != 0 {
		t.Fatalf("stock = %d/%d, want 1/0", views[0].Stock, views[1].Stock)
	}

	// Коды активации не должны утекать на витрину.
	if strings.Contains(rec.Body.String(), "UC60-A1") {
		t.Fatalf("storefront response leaks redeem codes: %s", rec.Body.String())
	}
}

func TestCreateOrder_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		oracle     *stubOracle
		body       any
		wantStatus int
	}{
		{
			name:       "success",
			oracle:     &stubOracle{valid: true},
			body:       createOrderRequest{PlayerID: "12345", ProductID: "p1"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			oracle:     &stubOracle{valid: true},
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing player id",
			oracle:     &stubOracle{valid: true},
			body:       createOrderRequest{ProductID: "p1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid player id",
			oracle:     &stubOracle{valid: false, msg: "Invalid Format"},
			body:       createOrderRequest{PlayerID: "abc", ProductID: "p1"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown product",
			oracle:     &stubOracle{valid: true},
			body:       createOrderRequest{PlayerID: "12345", ProductID: "nope"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "out of stock",
			oracle:     &stubOracle{valid: true},
			body:       createOrderRequest{PlayerID: "12345", ProductID: "p2"},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, tt.oracle)

			rec := api.do(t, http.MethodPost, "/api/orders", tt.body, false)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCreateOrder_InsufficientFunds(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	if err := api.store.SaveProfile(context.Background(), model.UserProfile{ID: "user_001", BalanceCents: 100}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	rec := api.do(t, http.MethodPost, "/api/orders", createOrderRequest{PlayerID: "12345", ProductID: "p1"}, false)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}

func TestGetOrders_NoContentWhenEmpty(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodGet, "/api/orders", nil, false)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodGet, "/api/orders/123456", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetBalance(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodGet, "/api/balance", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Name    string  `json:"name"`
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Balance != 10.00 {
		t.Fatalf("balance = %v, want 10.00", resp.Balance)
	}
}

func TestCreateFundingRequest(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodPost, "/api/wallet/requests",
		fundingRequestRequest{Amount: 25.50, Method: "Bank Transfer", Reference: "TX-100"}, false)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var view fundingView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if view.Amount != 25.50 {
		t.Fatalf("amount = %v, want 25.50", view.Amount)
	}
	if view.Status != string(model.FundingStatusPending) {
		t.Fatalf("status = %q, want pending", view.Status)
	}
}

func TestCreateFundingRequest_RejectsNonPositiveAmount(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodPost, "/api/wallet/requests",
		fundingRequestRequest{Amount: 0, Method: "Bank Transfer"}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodGet, "/api/admin/queue", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = api.do(t, http.MethodGet, "/api/admin/queue", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAdminWorkerLifecycle(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})

	rec := api.do(t, http.MethodPost, "/api/admin/workers",
		addWorkerRequest{Email: "bot9@example.com", Password: "secret"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add worker status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var created workerView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("worker response leaks the password: %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodPatch, "/api/admin/workers/"+created.ID,
		setWorkerStatusRequest{Status: "disabled"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = api.do(t, http.MethodPatch, "/api/admin/workers/"+created.ID,
		setWorkerStatusRequest{Status: "busy"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("runtime status via admin API must be rejected, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodDelete, "/api/admin/workers/"+created.ID, nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = api.do(t, http.MethodDelete, "/api/admin/workers/"+created.ID, nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAdminImportProducts(t *testing.T) {
	api := newTestAPI(t, &stubOracle{
		valid: true,
		parsed: []oracle.ImportedProduct{
			{Name: "60 UC", Price: 5.00, RedeemCode: "UC60-B2"},
			{Name: "New Pack", Price: 12.00, RedeemCode: "NP-1"},
		},
	})

	rec := api.do(t, http.MethodPost, "/api/admin/products/import", "60 UC $5 UC60-B2\nNew Pack $12 NP-1", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["imported"] != 2 {
		t.Fatalf("imported = %d, want 2", resp["imported"])
	}

	// Существующий товар пополняется кодом, новый появляется в каталоге.
	products, err := api.ledger.Products(context.Background())
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("got %d products, want 3", len(products))
	}
	for _, p := range products {
		if p.Name == "60 UC" && len(p.RedeemCodes) != 2 {
			t.Fatalf("existing product pool = %v, want two codes", p.RedeemCodes)
		}
	}
}

func TestAdminFundingApproval(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})
	ctx := context.Background()

	request, err := api.ledger.CreateFundingRequest(ctx, 5000, "Bank Transfer", "TX-7")
	if err != nil {
		t.Fatalf("create funding request: %v", err)
	}

	rec := api.do(t, http.MethodPost, "/api/admin/funding/"+request.ID+"/approve", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, want %d", rec.Code, http.StatusOK)
	}

	profile, err := api.ledger.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.BalanceCents != 6000 {
		t.Fatalf("balance = %d, want 6000", profile.BalanceCents)
	}

	// Повторное рассмотрение конфликтует и не зачисляет средства второй раз.
	rec = api.do(t, http.MethodPost, "/api/admin/funding/"+request.ID+"/approve", nil, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second approve status = %d, want %d", rec.Code, http.StatusConflict)
	}

	profile, err = api.ledger.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.BalanceCents != 6000 {
		t.Fatalf("balance after repeat = %d, want 6000", profile.BalanceCents)
	}
}

func TestStreamOrderEvents_TerminalOrderClosesStream(t *testing.T) {
	api := newTestAPI(t, &stubOracle{valid: true})
	ctx := context.Background()

	order, err := api.ledger.CreateOrder(ctx, "12345", "p1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := api.ledger.FailOrder(ctx, order.ID, "manual stop"); err != nil {
		t.Fatalf("fail order: %v", err)
	}

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/orders/" + strconv.FormatInt(order.ID, 10) + "/events")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content-type = %q, want text/event-stream", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.Contains(buf.String(), `"status":"failed"`) {
		t.Fatalf("stream %q does not contain the terminal snapshot", buf.String())
	}
}
