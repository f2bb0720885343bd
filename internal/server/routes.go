package server

import (
	"compress/gzip"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dastarhan/backend/internal/handler"
	"github.com/dastarhan/backend/internal/middleware"
)

func (s *Server) setupRoutes(handler *handler.Handler) {
	s.setupMiddleware()

	s.mux.Route("/", func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Route("/user", func(r chi.Router) {
				r.Post("/login", http.HandlerFunc(handler.Login))
				r.Post("/register", http.HandlerFunc(handler.Register))

				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth)

					r.Get("/orders", http.HandlerFunc(handler.GetUserOrders))
					r.Get("/balance", http.HandlerFunc(handler.GetBalance))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				// Guests may create and track orders, so auth is optional here.
				r.With(middleware.OptionalAuth).Post("/", http.HandlerFunc(handler.CreateOrder))

				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", http.HandlerFunc(handler.GetOrderStatus))
					r.Post("/checkout", http.HandlerFunc(handler.AttachCheckout))
					r.Post("/verify", http.HandlerFunc(handler.VerifyPayment))
					r.Post("/accept", http.HandlerFunc(handler.AcceptOrder))
					r.Post("/decline", http.HandlerFunc(handler.DeclineOrder))
					r.Post("/ready", http.HandlerFunc(handler.MarkReady))

					r.With(middleware.Auth).Post("/repeat", http.HandlerFunc(handler.RepeatOrder))
				})
			})

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/ready", http.HandlerFunc(handler.GetReadyDeliveries))

				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth)

					r.Get("/active", http.HandlerFunc(handler.GetActiveDeliveries))
					r.Post("/{orderID}/accept", http.HandlerFunc(handler.AcceptDelivery))
					r.Post("/{orderID}/delivered", http.HandlerFunc(handler.MarkDelivered))
				})
			})
		})
	})
}

func (s *Server) setupMiddleware() {
	s.mux.Use(
		middleware.Logger,
		chiMiddleware.Compress(gzip.BestCompression, "application/json", "text/html", "text/plain"),
	)
}
