package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reliefnet/internal/api"
	"reliefnet/internal/auth"
	"reliefnet/internal/backfill"
	"reliefnet/internal/broadcast"
	"reliefnet/internal/config"
	"reliefnet/internal/geocode"
	"reliefnet/internal/logging"
	"reliefnet/internal/repository"
	"reliefnet/internal/weather"
	"reliefnet/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry + broadcaster form the real-time alert core
	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry)

	geocoder := geocode.NewClient(cfg.Geocode.NominatimURL)
	weatherClient := weather.NewClient(cfg.Weather.URL, cfg.Weather.APIKey)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Retry failed geocodes in the background
	var backfiller *backfill.Poller
	if cfg.Backfill.Enabled {
		backfiller = backfill.NewPoller(db, geocoder, cfg.Backfill.Interval,
			cfg.Backfill.Workers, cfg.Backfill.BufferSize)
		backfiller.Start(ctx)
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitRPS*2))

	handler := api.NewHandler(db, db, tokens, geocoder, weatherClient, broadcaster)
	handler.RegisterRoutes(router)

	wsHandler := ws.NewHandler(registry, cfg.Hub.SendBuffer)
	wsHandler.RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	if backfiller != nil {
		backfiller.Stop()
	}
	registry.CloseAll() // Terminate all subscriber sessions

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
