package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(orders *OrdersHandler, logger *zap.Logger, requestTimeout time.Duration) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", orders.CreateOrder)
		r.Route("/{order_id}", func(r chi.Router) {
			r.Get("/", orders.GetOrder)
			r.Post("/payments", orders.RecordPayment)
			r.Post("/cancel", orders.CancelOrder)
		})
	})

	return r
}
