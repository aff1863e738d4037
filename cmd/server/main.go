package main

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

	"planets-engine/internal/app"
	"planets-engine/internal/auth"
	"planets-engine/internal/events"
	"planets-engine/internal/middleware"
	"planets-engine/internal/server"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/cookies"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/logger"
	"planets-engine/internal/shared/redis"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	signer, err := auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	a, err := app.New(cfg, db, rdb, clock.System{}, log)
	if err != nil {
		return err
	}

	if rdb != nil {
		publisher := events.NewRedisPublisher(rdb.Client, events.DefaultChannel, log)
		go publisher.Run(ctx, a.Bus.Subscribe(256, nil))
	}

	schedulerDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		go func() {
			defer close(schedulerDone)
			a.Scheduler.Run(ctx)
		}()
	} else {
		log.Info("Scheduler disabled, ticks only run through the admin endpoint")
		close(schedulerDone)
	}

	routes := server.NewRoutes(server.Dependencies{
		DB:            db,
		Redis:         rdb,
		Catalog:       a.Catalog,
		Energy:        a.Energy,
		Signer:        signer,
		Cookies:       cookies.NewSettings(middleware.AuthCookieName, cfg.Auth, cfg.Frontend),
		Empires:       a.Empires,
		Bases:         a.Bases,
		Queue:         a.Queue,
		Fleets:        a.Fleets,
		Scheduler:     a.Scheduler,
		State:         a.State,
		Bus:           a.Bus,
		Metric:        a.Metric,
		AllowedOrigin: cfg.Frontend.URL,
	}, log)
	mux := routes.Setup()

	var handler http.Handler = mux
	handler = middleware.NewRateLimiter(ctx, cfg.RateLimit).Middleware(handler)
	handler = middleware.NewCORS(cfg.Frontend).Middleware(handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Planets engine starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"database", cfg.Database.Driver,
			"redis", rdb != nil,
			"scheduler", cfg.Scheduler.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
	stop()
	<-schedulerDone

	log.Info("Server stopped")
	return nil
}
