package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/redeem-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса выкупа кодов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.GetProducts)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.GetOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/events", h.StreamOrderEvents)

		r.Get("/balance", h.GetBalance)

		r.Post("/wallet/requests", h.CreateFundingRequest)
		r.Get("/wallet/requests", h.GetFundingRequests)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.adminMiddleware.Middleware)

			r.Get("/products", h.AdminGetProducts)
			r.Post("/products", h.AdminAddProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)
			r.Post("/products/import", h.AdminImportProducts)

			r.Get("/workers", h.AdminGetWorkers)
			r.Post("/workers", h.AdminAddWorker)
			r.Delete("/workers/{id}", h.AdminDeleteWorker)
			r.Patch("/workers/{id}", h.AdminSetWorkerStatus)

			r.Get("/queue", h.AdminGetQueue)

			r.Get("/funding", h.AdminGetFunding)
			r.Post("/funding/{id}/approve", h.AdminApproveFunding)
			r.Post("/funding/{id}/reject", h.AdminRejectFunding)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
