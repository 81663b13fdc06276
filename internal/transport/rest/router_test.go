package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/furahitechstudio/furahitechpay/internal/transport/rest"
)

var _ = Describe("Router", func() {
	var (
		router *chi.Mux
		health *rest.HealthHandler
		lg     *slog.Logger
	)

	BeforeEach(func() {
		lg = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router = chi.NewRouter()
		health = rest.NewHealthHandler()
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	It("should answer ping", func() {
		// Given
		rest.RegisterAllRoutes(router, rest.RouterConfig{AllowedOrigins: "*"}, health, nil, lg)

		// When
		rec := get("/ping")

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"OK"`))
		Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
	})

	It("should report healthy when every component passes", func() {
		// Given
		health.Register("database", func(ctx context.Context) error { return nil }).
			Register("redis", func(ctx context.Context) error { return nil }).
			Register("ignored", nil)
		rest.RegisterAllRoutes(router, rest.RouterConfig{}, health, nil, lg)

		// When
		rec := get("/health")

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveLen(2))
	})

	It("should report unhealthy when a component fails", func() {
		// Given
		health.Register("database", func(ctx context.Context) error { return nil }).
			Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })
		rest.RegisterAllRoutes(router, rest.RouterConfig{}, health, nil, lg)

		// When
		rec := get("/health")

		// Then
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		var resp rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
		Expect(resp.Components["redis"].Message).To(Equal("connection refused"))
		Expect(resp.Components["database"].Status).To(Equal(rest.HealthHealthy))
	})

	It("should not mount payment routes without a handler", func() {
		// Given
		rest.RegisterAllRoutes(router, rest.RouterConfig{}, health, nil, lg)

		// When
		rec := get("/api/v1/payments/poll")

		// Then
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should serve the OpenAPI document for the payment routes", func() {
		// Given
		rest.RegisterAllRoutes(router, rest.RouterConfig{}, health, nil, lg)

		// When
		rec := get("/openapi.yml")

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/yaml"))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
		for _, path := range []string{
			"/api/v1/payments/validate:",
			"/api/v1/payments/poll:",
			"/api/v1/payments/results/{transactionID}:",
		} {
			Expect(rec.Body.String()).To(ContainSubstring(path))
		}
	})

	It("should serve the swagger UI pointing at the OpenAPI document", func() {
		// Given
		rest.RegisterAllRoutes(router, rest.RouterConfig{}, health, nil, lg)

		// When
		rec := get("/swagger/index.html")

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("/openapi.yml"))
	})
})
