// Package handler содержит HTTP-обработчики API сервиса выкупа кодов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/ledger"
	"github.com/mmeshcher/redeem-system/internal/middleware"
	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/oracle"
)

// Ledger определяет контракт учёта, используемый HTTP-обработчиками.
type Ledger interface {
	Products(ctx context.Context) ([]model.Product, error)
	AddProduct(ctx context.Context, name string, priceCents int64, imageURL string, codes []string) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ImportProducts(ctx context.Context, items []ledger.ImportItem) (int, error)

	Orders(ctx context.Context) ([]model.Order, error)
	Order(ctx context.Context, id int64) (*model.Order, error)
	CreateOrder(ctx context.Context, playerID, productID string) (*model.Order, error)
	QueuedOrders(ctx context.Context) ([]model.Order, error)
	ProcessingOrders(ctx context.Context) ([]model.Order, error)

	Profile(ctx context.Context) (model.UserProfile, error)

	Workers(ctx context.Context) ([]model.Worker, error)
	AddWorker(ctx context.Context, email, password string) (*model.Worker, error)
	DeleteWorker(ctx context.Context, id string) error
	SetWorkerStatus(ctx context.Context, id string, status model.WorkerStatus) error

	CreateFundingRequest(ctx context.Context, amountCents int64, method, reference string) (*model.FundingRequest, error)
	FundingRequests(ctx context.Context) ([]model.FundingRequest, error)
	ResolveFundingRequest(ctx context.Context, id string, approve bool) error

	Subscribe() (<-chan ledger.Event, func())
}

// Oracle определяет контракт внешнего анализатора, используемый обработчиками.
type Oracle interface {
	ValidateIdentifier(ctx context.Context, playerID string) oracle.ValidationResult
	ParseBulkImport(ctx context.Context, rawText string) []oracle.ImportedProduct
}

// Handler реализует HTTP-обработчики API сервиса выкупа кодов.
type Handler struct {
	ledger          Ledger
	oracle          Oracle
	logger          *zap.Logger
	adminMiddleware *middleware.AdminMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(l Ledger, o Oracle, logger *zap.Logger, admin *middleware.AdminMiddleware) *Handler {
	return &Handler{
		ledger:          l,
		oracle:          o,
		logger:          logger,
		adminMiddleware: admin,
	}
}

// Суммы в хранилище лежат в центах, наружу API отдаёт доллары.
func toDollars(cents int64) float64 {
	return float64(cents) / 100
}

func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

type productView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
	Stock    int     `json:"stock"`
}

func newProductView(p model.Product) productView {
	return productView{
		ID:       p.ID,
		Name:     p.Name,
		Price:    toDollars(p.PriceCents),
		ImageURL: p.ImageURL,
		Stock:    len(p.RedeemCodes),
	}
}

type orderView struct {
	ID          int64     `json:"id"`
	PlayerID    string    `json:"player_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Log         []string  `json:"log"`
	WorkerID    string    `json:"worker_id,omitempty"`
	Analysis    string    `json:"analysis,omitempty"`
}

func newOrderView(o model.Order) orderView {
	return orderView{
		ID:          o.ID,
		PlayerID:    o.PlayerID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Amount:      toDollars(o.AmountCents),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		Log:         o.Log,
		WorkerID:    o.WorkerID,
		Analysis:    o.Analysis,
	}
}

func newOrderViews(orders []model.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

type fundingView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newFundingView(f model.FundingRequest) fundingView {
	return fundingView{
		ID:        f.ID,
		UserID:    f.UserID,
		UserName:  f.UserName,
		Amount:    toDollars(f.AmountCents),
		Method:    f.Method,
		Reference: f.Reference,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// GetProducts возвращает витрину товаров.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.ledger.Products(r.Context())
	if err != nil {
		h.logger.Error("get products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}

	h.writeJSON(w, http.StatusOK, views)
}

type createOrderRequest struct {
	PlayerID  string `json:"player_id"`
	ProductID string `json:"product_id"`
}

// CreateOrder принимает покупку и ставит заказ в очередь выполнения.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.PlayerID == "" || req.ProductID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	verdict := h.oracle.ValidateIdentifier(r.Context(), req.PlayerID)
	if !verdict.IsValid {
		http.Error(w, verdict.Message, http.StatusUnprocessableEntity)
		return
	}

	order, err := h.ledger.CreateOrder(r.Context(), req.PlayerID, req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, ledger.ErrOutOfStock):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, ledger.ErrInsufficientBalance):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("create order error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, newOrderView(*order))
}

// GetOrders возвращает заказы пользователя, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.Orders(r.Context())
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderViews(orders))
}

func orderIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// GetOrder возвращает один заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromURL(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.ledger.Order(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderView(*order))
}

// StreamOrderEvents отдаёт SSE-поток снимков заказа до его конечного статуса.
func (h *Handler) StreamOrderEvents(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromURL(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Подписка оформляется до первого снимка, чтобы не потерять события между
	// чтением и началом потока.
	events, cancel := h.ledger.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() (terminal bool) {
		order, err := h.ledger.Order(r.Context(), id)
		if err != nil {
			return true
		}

		payload, err := json.Marshal(newOrderView(*order))
		if err != nil {
			h.logger.Error("encode order event", zap.Error(err))
			return true
		}

		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return true
		}
		flusher.Flush()

		return order.Status.Terminal()
	}

	if send() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			if e.Collection != ledger.CollectionOrders {
				continue
			}
			if e.OrderID != 0 && e.OrderID != id {
				continue
			}
			if send() {
				return
			}
		}
	}
}

// GetBalance возвращает текущий баланс пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	profile, err := h.ledger.Profile(r.Context())
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":    profile.Name,
		"balance": toDollars(profile.BalanceCents),
	})
}

type fundingRequestRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

// CreateFundingRequest принимает заявку на пополнение баланса.
func (h *Handler) CreateFundingRequest(w http.ResponseWriter, r *http.Request) {
	var req fundingRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	request, err := h.ledger.CreateFundingRequest(r.Context(), toCents(req.Amount), req.Method, req.Reference)
	if err != nil {
		if errors.Is(err, ledger.ErrFundingInvalid) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("create funding request error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, newFundingView(*request))
}

// GetFundingRequests возвращает заявки на пополнение, новые первыми.
func (h *Handler) GetFundingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.ledger.FundingRequests(r.Context())
	if err != nil {
		h.logger.Error("get funding requests error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	views := make([]fundingView, 0, len(requests))
	for _, f := range requests {
		views = append(views, newFundingView(f))
	}

	h.writeJSON(w, http.StatusOK, views)
}
