package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/api"
	"camera-inspection-backend/internal/capture"
	"camera-inspection-backend/internal/db"
	"camera-inspection-backend/internal/devicelink"
	"camera-inspection-backend/internal/notification"
	"camera-inspection-backend/internal/session"
	"camera-inspection-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "inspectiond ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := appStore.CreateSchemaIfAbsent(ctx); err != nil {
		logger.Fatalf("failed to create schema: %v", err)
	}

	link := devicelink.New(cfg.Device, cfg.Fields.VendorCode)
	camera := capture.NewSnapshotCamera(cfg.Camera.SnapshotURL, cfg.Camera.FrameInterval)
	encoder := capture.JPEGEncoder{Quality: cfg.Camera.JPEGQuality}

	sess := session.New(cfg.Fields, link, camera, encoder, appStore)
	go sess.Run(ctx, link.Messages())

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		sess.AddObserver(pool)
		logger.Printf("NOT_OK alerts enabled with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; NOT_OK alerts disabled")
	}

	router := api.NewRouter(api.NewHandler(appStore, sess, webpushOptions), cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	link.Stop()
	camera.Stop()
	cancel()

	stats := link.Stats()
	logger.Printf("Device link stopped after %d polls, %d readings delivered, %d recoveries",
		stats.Polls, stats.Delivered, stats.Recoveries)
	logger.Println("Server gracefully stopped")
}
