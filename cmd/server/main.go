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
	"github.com/redis/go-redis/v9"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/config"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/es"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/events"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/handlers"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/lockout"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/logging"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/mailer"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/resettoken"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
	httpserver "github.com/LuSiTao8579/lovejoy-secure-app/internal/transport/http"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/upload"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/view"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     configuration.REDIS_ADDR,
		Password: configuration.REDIS_PASSWORD,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis connect error: %v", err)
	}

	sessions := &session.Manager{
		Store:  session.NewRedisStore(rdb),
		Secret: []byte(configuration.SESSION_SECRET),
	}

	uploads, err := upload.NewStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("upload dir error: %v", err)
	}

	prod := &events.Producer{}
	if configuration.KAFKA_ADDRESS != "" {
		prod = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	evalHandler := &handlers.EvalHandler{
		DB:       db,
		Sessions: sessions,
		Uploads:  uploads,
		Producer: prod,
		Index:    "eval_requests",
	}
	searchHandler := &handlers.SearchHandler{Index: "eval_requests"}
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		evalHandler.ES = esClient
		searchHandler.ES = esClient
	}

	deps := httpserver.Deps{
		DB:          db,
		Sessions:    sessions,
		PageHandler: &handlers.PageHandler{Sessions: sessions},
		AuthHandler: &handlers.AuthHandler{
			DB:       db,
			Sessions: sessions,
			Lockout:  &lockout.Tracker{DB: db},
			Tokens:   &resettoken.Store{DB: db},
			Mailer: &mailer.Mailer{
				Host:     configuration.SMTP_HOST,
				Port:     configuration.SMTP_PORT,
				Username: configuration.SMTP_USER,
				Password: configuration.SMTP_PASSWORD,
				From:     configuration.SMTP_FROM,
				BaseURL:  configuration.BASE_URL,
				Logger:   logger,
			},
			Producer: prod,
		},
		EvalHandler:   evalHandler,
		SearchHandler: searchHandler,
		UploadDir:     configuration.UPLOAD_DIR,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	renderer, err := view.New()
	if err != nil {
		log.Fatalf("template init error: %v", err)
	}
	e.Renderer = renderer

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
