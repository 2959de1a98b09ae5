package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/Dan9191/card-vault/internal/config"
	"github.com/Dan9191/card-vault/internal/handler"
	"github.com/Dan9191/card-vault/internal/middleware"
	"github.com/Dan9191/card-vault/internal/repository"
	"github.com/Dan9191/card-vault/internal/service"
	"github.com/Dan9191/card-vault/internal/token"
	"github.com/Dan9191/card-vault/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize store
	var store repository.Store
	switch cfg.StoreDriver {
	case "memory":
		store = repository.NewMemory()
		logger.Warn("Using in-memory store; data will not survive restarts")
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		store = repository.NewPostgres(db)
	}

	// Initialize layers
	codec := token.NewCodec([]byte(cfg.JWTSecret))
	var notifier service.Notifier
	if cfg.SMTPHost != "" {
		notifier = email.NewSender(cfg, logger)
	}
	authSvc := service.NewAuthService(store, codec, logger, cfg.SessionTTL)
	cardSvc := service.NewCardService(store, codec, logger, notifier, cfg.CardTokenTTL)
	h := handler.NewHandler(authSvc, cardSvc, logger)

	// Sweep expired session-denylist entries on a schedule
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CleanupSchedule, func() {
		if err := authSvc.PurgeExpiredSessions(context.Background()); err != nil {
			logger.Errorf("Failed to purge expired sessions: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule session cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes: session credential first, card credential per operation
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.Auth(authSvc, logger))
	authRouter.HandleFunc("/logout", h.Logout).Methods("POST")
	authRouter.HandleFunc("/cards", h.TokenizeCard).Methods("POST")
	authRouter.HandleFunc("/cards", h.ListCards).Methods("GET")
	authRouter.HandleFunc("/cards/{id}", h.GetCard).Methods("GET")
	authRouter.HandleFunc("/cards/{id}/refresh", h.RefreshCard).Methods("POST")
	authRouter.HandleFunc("/cards/{id}/revoke", h.RevokeCard).Methods("PATCH")
	authRouter.HandleFunc("/cards/{id}", h.DeleteCard).Methods("DELETE")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
