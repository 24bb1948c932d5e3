package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendlog/pkg/auth"
	"github.com/mcclellann/lendlog/pkg/config"
	"github.com/mcclellann/lendlog/pkg/logger"
	"github.com/mcclellann/lendlog/pkg/store"
)

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger, recoverer)

	router.HandleFunc("/api/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/api/auth/register", s.registerHandler).Methods("POST")
	router.HandleFunc("/api/auth/login", s.loginHandler).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/auth/user", s.currentUserHandler).Methods("GET")

	api.HandleFunc("/contacts", s.listContactsHandler).Methods("GET")
	api.HandleFunc("/contacts", s.createContactHandler).Methods("POST")
	api.HandleFunc("/contacts/{id}", s.getContactHandler).Methods("GET")
	api.HandleFunc("/contacts/{id}", s.updateContactHandler).Methods("PUT")
	api.HandleFunc("/contacts/{id}", s.deleteContactHandler).Methods("DELETE")

	api.HandleFunc("/transactions", s.listTransactionsHandler).Methods("GET")
	api.HandleFunc("/transactions", s.createTransactionHandler).Methods("POST")
	api.HandleFunc("/transactions/{id}", s.getTransactionHandler).Methods("GET")
	api.HandleFunc("/transactions/{id}", s.updateTransactionHandler).Methods("PUT")
	api.HandleFunc("/transactions/{id}", s.deleteTransactionHandler).Methods("DELETE")
	api.HandleFunc("/transactions/{id}/settle", s.settleTransactionHandler).Methods("POST")

	api.HandleFunc("/payments", s.recordPaymentHandler).Methods("POST")
	api.HandleFunc("/payments/{id}", s.deletePaymentHandler).Methods("DELETE")

	api.HandleFunc("/dashboard/stats", s.dashboardStatsHandler).Methods("GET")

	return router
}

// Handler returns the router wrapped with CORS and, when enabled, Sentry.
func (s *Server) Handler(cfg *config.Config) http.Handler {
	var h http.Handler = cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(s.routes())

	if cfg.SentryDSN != "" {
		h = sentryhttp.New(sentryhttp.Options{}).Handle(h)
	}
	return h
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Warn("Sentry initialization failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
