package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/ledger"
	"github.com/mmeshcher/redeem-system/internal/model"
)

// workerView скрывает пароль бот-аккаунта от административного API.
type workerView struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Status  string `json:"status"`
	Runtime string `json:"runtime_status,omitempty"`
}

func newWorkerView(w model.Worker) workerView {
	return workerView{
		ID:      w.ID,
		Email:   w.Email,
		Status:  string(w.Status),
		Runtime: string(w.Runtime),
	}
}

type adminProductView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url,omitempty"`
	RedeemCodes []string `json:"redeem_codes"`
}

func newAdminProductView(p model.Product) adminProductView {
	return adminProductView{
		ID:          p.ID,
		Name:        p.Name,
		Price:       toDollars(p.PriceCents),
		ImageURL:    p.ImageURL,
		RedeemCodes: p.RedeemCodes,
	}
}

// AdminGetProducts возвращает товары вместе с пулами кодов.
func (h *Handler) AdminGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.ledger.Products(r.Context())
	if err != nil {
		h.logger.Error("admin get products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	views := make([]adminProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newAdminProductView(p))
	}

	h.writeJSON(w, http.StatusOK, views)
}

type addProductRequest struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url"`
	RedeemCodes []string `json:"redeem_codes"`
}

// AdminAddProduct добавляет товар или пополняет пул кодов существующего.
func (h *Handler) AdminAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.ledger.AddProduct(r.Context(), req.Name, toCents(req.Price), req.ImageURL, req.RedeemCodes)
	if err != nil {
		if errors.Is(err, ledger.ErrProductInvalid) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("admin add product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, newAdminProductView(*product))
}

// AdminDeleteProduct удаляет товар вместе с пулом кодов.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ledger.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin delete product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminImportProducts разбирает произвольный текст анализатором и вливает
// распознанные позиции в каталог.
func (h *Handler) AdminImportProducts(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	parsed := h.oracle.ParseBulkImport(r.Context(), string(body))
	if len(parsed) == 0 {
		h.writeJSON(w, http.StatusOK, map[string]int{"imported": 0})
		return
	}

	items := make([]ledger.ImportItem, 0, len(parsed))
	for _, p := range parsed {
		items = append(items, ledger.ImportItem{
			Name:       p.Name,
			PriceCents: toCents(p.Price),
			RedeemCode: p.RedeemCode,
			ImageURL:   p.ImageURL,
		})
	}

	imported, err := h.ledger.ImportProducts(r.Context(), items)
	if err != nil {
		h.logger.Error("admin import products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

// AdminGetWorkers возвращает парк бот-аккаунтов.
func (h *Handler) AdminGetWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.ledger.Workers(r.Context())
	if err != nil {
		h.logger.Error("admin get workers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	views := make([]workerView, 0, len(workers))
	for _, wk := range workers {
		views = append(views, newWorkerView(wk))
	}

	h.writeJSON(w, http.StatusOK, views)
}

type addWorkerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminAddWorker регистрирует новый бот-аккаунт.
func (h *Handler) AdminAddWorker(w http.ResponseWriter, r *http.Request) {
	var req addWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	worker, err := h.ledger.AddWorker(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("admin add worker error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, newWorkerView(*worker))
}

// AdminDeleteWorker удаляет бот-аккаунт.
func (h *Handler) AdminDeleteWorker(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteWorker(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ledger.ErrWorkerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin delete worker error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setWorkerStatusRequest struct {
	Status string `json:"status"`
}

// AdminSetWorkerStatus меняет административный статус воркера. Рабочим статусом
// (online/busy) управляет только планировщик.
func (h *Handler) AdminSetWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req setWorkerStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.WorkerStatus(req.Status)
	if status != model.WorkerStatusActive && status != model.WorkerStatusDisabled {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.ledger.SetWorkerStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		if errors.Is(err, ledger.ErrWorkerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin set worker status error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminGetQueue возвращает текущее состояние очереди выполнения.
func (h *Handler) AdminGetQueue(w http.ResponseWriter, r *http.Request) {
	queued, err := h.ledger.QueuedOrders(r.Context())
	if err != nil {
		h.logger.Error("admin get queue error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	processing, err := h.ledger.ProcessingOrders(r.Context())
	if err != nil {
		h.logger.Error("admin get queue error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string][]orderView{
		"queued":     newOrderViews(queued),
		"processing": newOrderViews(processing),
	})
}

// AdminGetFunding возвращает заявки на пополнение для рассмотрения.
func (h *Handler) AdminGetFunding(w http.ResponseWriter, r *http.Request) {
	h.GetFundingRequests(w, r)
}

func (h *Handler) resolveFunding(w http.ResponseWriter, r *http.Request, approve bool) {
	err := h.ledger.ResolveFundingRequest(r.Context(), chi.URLParam(r, "id"), approve)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrFundingNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, ledger.ErrFundingResolved):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("resolve funding error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminApproveFunding подтверждает заявку и зачисляет средства на баланс.
func (h *Handler) AdminApproveFunding(w http.ResponseWriter, r *http.Request) {
	h.resolveFunding(w, r, true)
}

// AdminRejectFunding отклоняет заявку без изменения баланса.
func (h *Handler) AdminRejectFunding(w http.ResponseWriter, r *http.Request) {
	h.resolveFunding(w, r, false)
}
