package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/payment", handler.PaymentWebhook)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/{orderId}", handler.GetOrder)
	})

	r.Route("/photographers", func(r chi.Router) {
		r.Post("/", handler.RegisterPhotographer)
		r.Get("/{photographerId}/balance", handler.GetBalance)
		r.Post("/{photographerId}/withdrawals", handler.CreateWithdrawal)
		r.Get("/{photographerId}/withdrawals", handler.ListWithdrawals)
	})

	r.Route("/withdrawals", func(r chi.Router) {
		r.Get("/{withdrawalId}", handler.GetWithdrawal)
		r.Delete("/{withdrawalId}", handler.CancelWithdrawal)
		r.Post("/{withdrawalId}/approve", handler.ApproveWithdrawal)
		r.Post("/{withdrawalId}/reject", handler.RejectWithdrawal)
		r.Post("/{withdrawalId}/complete", handler.CompleteWithdrawal)
	})

	return &Server{Router: r}
}
