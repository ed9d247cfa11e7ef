package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/config"
	"checkin/internal/diploma"
	"checkin/internal/mailer"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/registration"
	"checkin/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	// The store is the sole synchronization point for the diploma marker;
	// without it no request can be served correctly, so fail closed.
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:diplomas")
	}

	channel := mailer.NewChannelFromConfig(cfg)
	if len(cfg.Transports()) == 0 {
		log.Println("mail not configured (SMTP_HOST unset); diploma delivery will fail fast")
	}
	m := metrics.New(nil)

	renderer := diploma.NewPDFRenderer("")
	diplomas := diploma.NewService(diploma.NewPostgresStore(db.Client), renderer, channel)
	recorder := attendance.NewRecorder(attendance.NewPostgresRepository(db.Client))
	reg := registration.NewService(registration.NewPostgresRepository(db.Client), channel, cfg.AllowedDomain)

	r := newRouter(deps{
		cfg:          cfg,
		registration: reg,
		recorder:     recorder,
		diplomas:     diplomas,
		queue:        q,
		metrics:      m,
		redisHealthy: redisClient.Healthy,
		mailState:    channel.State,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
