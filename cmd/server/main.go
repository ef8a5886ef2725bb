package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/daypage/backend/internal/config"
	"github.com/daypage/backend/internal/es"
	"github.com/daypage/backend/internal/events"
	"github.com/daypage/backend/internal/handlers"
	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/mail"
	authmw "github.com/daypage/backend/internal/middleware/auth"
	"github.com/daypage/backend/internal/storage"
	"github.com/daypage/backend/internal/token"
	httpserver "github.com/daypage/backend/internal/transport/http"
	"github.com/daypage/backend/internal/verification"
)

const pageIndex = "pages"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := configuration.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	tokens, err := token.New([]byte(configuration.SECRET_KEY))
	if err != nil {
		log.Fatalf("token service error: %v", err)
	}

	prod := events.NewProducer(configuration.KAFKA_ADDRESS)

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch error: %v", err)
	}

	store, err := storage.NewDiskStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}

	mailer := &mail.SMTPMailer{
		Host:     configuration.SMTP_HOST,
		Port:     configuration.SMTP_PORT,
		Username: configuration.SMTP_USER,
		Password: configuration.SMTP_PASSWORD,
		From:     configuration.SMTP_USER,
		Timeout:  10 * time.Second,
	}

	verifier := &verification.Service{
		DB:      db,
		Tokens:  tokens,
		Mailer:  mailer,
		Store:   verification.NewMemoryStore(),
		BaseURL: configuration.BASE_URL,
	}

	guard := &authmw.Guard{DB: db, Tokens: tokens}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{
			DB:           db,
			Tokens:       tokens,
			Verification: verifier,
			Producer:     prod,
			Strategy:     configuration.VERIFICATION_STRATEGY,
		},
		PageHandler:   &handlers.PageHandler{DB: db, Producer: prod, ES: esClient, Index: pageIndex},
		FileHandler:   &handlers.FileHandler{DB: db, Store: store},
		UserHandler:   &handlers.UserHandler{DB: db, Producer: prod},
		SearchHandler: handlers.NewSearchHandler(esClient, pageIndex),
		Guard:         guard,
		Logger:        logger,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("server started", "addr", configuration.HTTP_ADDR, "strategy", configuration.VERIFICATION_STRATEGY)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	} else {
		logger.Error("db() error", "error", err)
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
