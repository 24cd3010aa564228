// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/config"
	"github.com/Shivanand-hulikatti/club-schedule/internal/database"
	"github.com/Shivanand-hulikatti/club-schedule/internal/handler"
	"github.com/Shivanand-hulikatti/club-schedule/internal/repository"
	"github.com/Shivanand-hulikatti/club-schedule/internal/service"
	"github.com/Shivanand-hulikatti/club-schedule/internal/sheet"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// stores groups the store implementations chosen at startup.
type stores struct {
	events interface {
		service.EventStore
		service.EventMirror
	}
	users         service.UserStore
	compensations service.CompensationStore
	close         func()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Load configuration ────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── 2. Open stores ───────────────────────────────────────────────────
	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	client := sheet.NewClient(cfg.EventEndpoint, cfg.UserEndpoint, cfg.RequestTimeout)

	syncer := service.NewSyncer(service.SyncDeps{
		Source:        client,
		Mirror:        st.events,
		Compensations: st.compensations,
		Sender:        client,
	})
	if err := syncer.Start(ctx, cfg.RefreshCron, cfg.RetryCron); err != nil {
		return err
	}
	defer syncer.Stop()

	schedule := service.NewSchedule(service.Deps{
		Events:        st.events,
		Users:         st.users,
		Compensations: st.compensations,
		Remote:        client,
		Status:        syncer,
		CanEdit:       cfg.IsEditor,
	})
	scheduleHandler := handler.NewScheduleHandler(schedule)

	// ── 4. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.SecurityHeaders)
	r.Use(handler.CORS(cfg.AllowedOrigins))
	if cfg.CSRF.Key != "" {
		r.Use(handler.CSRF([]byte(cfg.CSRF.Key), cfg.CSRF.Secure, cfg.CSRF.TrustedOrigins))
	}

	r.Get("/health", handler.HealthCheck)
	scheduleHandler.Routes(r)

	// ── 5. Start server with graceful shutdown ───────────────────────────
	// A failed join runs the event, booking and compensation calls back to
	// back, each bounded by RequestTimeout.
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "addr", cfg.Listen, "database", cfg.Database.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server_stopped")
	return nil
}

// openStores connects to PostgreSQL when configured and falls back to the
// in-memory stores otherwise.
func openStores(ctx context.Context, db config.DatabaseConfig) (*stores, error) {
	if !db.Enabled() {
		slog.Info("using_memory_stores")
		return &stores{
			events:        repository.NewMemoryEventStore(),
			users:         repository.NewMemoryUserStore(),
			compensations: repository.NewMemoryCompensationStore(),
			close:         func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, db.DSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected_to_postgres", "host", db.Host, "db", db.Name)

	return &stores{
		events:        repository.NewEventRepository(pool),
		users:         repository.NewUserRepository(pool),
		compensations: repository.NewCompensationRepository(pool),
		close:         pool.Close,
	}, nil
}
