// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/redis/rueidis"

	"github.com/elderlink/elderlink/internal/config"
	"github.com/elderlink/elderlink/internal/database"
	"github.com/elderlink/elderlink/internal/handler"
	"github.com/elderlink/elderlink/internal/logger"
	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/notify"
	"github.com/elderlink/elderlink/internal/repository"
	"github.com/elderlink/elderlink/internal/repository/memory"
	mongorepo "github.com/elderlink/elderlink/internal/repository/mongo"
	"github.com/elderlink/elderlink/internal/repository/postgres"
	"github.com/elderlink/elderlink/internal/service"
)

const exitCode = 1

func main() {
	if err := run(); err != nil {
		slog.Error("elderlink stopped", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.Setup(cfg.LogLevel)
	slog.SetDefault(log)

	// ── 1. Connect to the store ───────────────────────────────────────────
	set, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := set.Close(closeCtx); err != nil {
			log.Warn("store close failed", slog.String("error", err.Error()))
		}
	}()
	log.Info("store ready", slog.String("backend", cfg.StoreBackend))

	// ── 2. Notification fan-out ───────────────────────────────────────────
	listeners := []notify.Listener{
		notify.NewNotificationWriter(set.Notifications, log, cfg.FanoutConcurrency),
	}
	if cfg.RedisAddr != "" {
		redisClient, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{cfg.RedisAddr},
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		listeners = append(listeners, notify.NewStreamMirror(redisClient, cfg.EventStream))
		log.Info("mirroring facts to redis stream", slog.String("stream", cfg.EventStream))
	}

	dispatcher := notify.NewDispatcher(log, cfg.DispatchBuffer, listeners...)
	dispatcher.Start(ctx)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	rules := model.Rules{Window: cfg.Window()}
	api := handler.NewAPI(
		service.NewEventService(set.Events, dispatcher, rules, log),
		service.NewAttendanceService(set.Attendance, log),
		service.NewUserService(set.Users, log),
		service.NewNotificationService(set.Notifications),
		log,
	)
	router, err := handler.NewRouter(api, handler.RouterConfig{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		Logger:    log,
	})
	if err != nil {
		dispatcher.Close()
		return err
	}

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Block until SIGINT, SIGTERM or a listener failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			dispatcher.Close()
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}

	// In-flight fan-out finishes before the store closes.
	dispatcher.Close()
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Set, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return repository.Set{}, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return repository.Set{}, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewSet(pool), nil

	case config.BackendMongo:
		client, err := database.NewMongo(ctx, cfg.MongoURI, log)
		if err != nil {
			return repository.Set{}, fmt.Errorf("mongo: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return repository.Set{}, fmt.Errorf("mongo indexes: %w", err)
		}
		return mongorepo.NewSet(client, db, log), nil

	default:
		set, _ := memory.NewSet()
		log.Warn("using in-memory store, data is lost on restart")
		return set, nil
	}
}
