package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/furahitechstudio/furahitechpay/internal/payment"
	"github.com/furahitechstudio/furahitechpay/internal/transport/rest"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment validation and status polling requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Stack         *paymentStack
	Router        *chi.Mux
	HealthChecker *rest.HealthHandler
	Logger        *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Stack.Close()

	setupRoutes(deps)

	cfg := deps.Stack.Config.Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Stack.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	paymentHandler := payment.NewHandler(deps.Stack.Service, deps.Stack.Defaults, deps.Logger)

	rest.RegisterAllRoutes(deps.Router, rest.RouterConfig{
		AllowedOrigins: deps.Stack.Config.Server.AllowedOrigins,
	}, deps.HealthChecker, paymentHandler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := initLogger(config)

	stack, err := newPaymentStack(context.Background(), config, lg)
	if err != nil {
		return nil, err
	}

	healthChecker := rest.NewHealthHandler()
	if stack.DB != nil {
		if sqlDB, err := stack.DB.DB(); err == nil {
			healthChecker.Register("database", sqlDB.PingContext)
		}
	}
	if rs, ok := stack.Store.(interface{ Ping(context.Context) error }); ok {
		healthChecker.Register("redis", rs.Ping)
	}
	healthChecker.Register("status_api", func(ctx context.Context) error {
		if state := stack.Client.BreakerState(); state == "open" {
			return fmt.Errorf("status api circuit breaker is %s", state)
		}
		return nil
	})

	return &Dependencies{
		Stack:         stack,
		Router:        chi.NewRouter(),
		HealthChecker: healthChecker,
		Logger:        lg,
	}, nil
}
