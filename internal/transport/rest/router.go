package rest

import (
	"log/slog"

	"github.com/go-chi/chi"

	"github.com/furahitechstudio/furahitechpay/internal/payment"
	"github.com/furahitechstudio/furahitechpay/internal/transport/middleware"
	"github.com/furahitechstudio/furahitechpay/internal/transport/swagger"
)

type RouterConfig struct {
	AllowedOrigins string
}

func RegisterAllRoutes(router *chi.Mux, cfg RouterConfig, healthHandler *HealthHandler, paymentHandler *payment.Handler, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/ping", healthHandler.pingHandler)
	router.Get("/health", healthHandler.healthCheckHandler)

	// Serve the OpenAPI document at root (outside API prefix)
	router.Get(swagger.SpecPath, swagger.SpecHandler)
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if paymentHandler == nil {
			return
		}

		r.Route("/payments", func(pr chi.Router) {
			pr.Post("/validate", paymentHandler.Validate)             // POST /payments/validate
			pr.Post("/poll", paymentHandler.StartPolling)             // POST /payments/poll
			pr.Get("/poll", paymentHandler.PollState)                 // GET /payments/poll
			pr.Delete("/poll", paymentHandler.CancelPolling)          // DELETE /payments/poll
			pr.Get("/results/{transactionID}", paymentHandler.Result) // GET /payments/results/:transactionID
		})
	})
}
