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

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/mr1hm/school-finance/internal/api"
	"github.com/mr1hm/school-finance/internal/audit"
	"github.com/mr1hm/school-finance/internal/broadcast"
	"github.com/mr1hm/school-finance/internal/config"
	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web application",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	slog.Info("Server starting", "env", cfg.Env, "addr", cfg.Addr(), "db_driver", cfg.DB.Driver)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	reg := metrics.NewRegistry()
	finance := metrics.NewFinance(reg)

	payments := broadcast.New[models.PaymentEvent](broadcast.DefaultBuffer)

	recorder := audit.NewRecorder(db, cfg.Worker.Count, cfg.Worker.BufferSize, finance)
	recorder.Start(ctx)

	clock := clockwork.NewRealClock()
	handler, err := api.NewHandler(api.Deps{
		Store: db,
		Sessions: session.NewManager(session.Options{
			Secret: cfg.Session.Secret,
			MaxAge: cfg.Session.MaxAge,
			Secure: cfg.Session.Secure,
		}, clock),
		Audit:    recorder,
		Payments: payments,
		Metrics:  finance,
		Clock:    clock,
		Settings: settingsFrom(cfg),
	})
	if err != nil {
		return err
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.Router(api.RouterOptions{
		CORSAllowOrigins: cfg.Server.CORSAllowOrigins,
		HTTPMetrics:      metrics.NewHTTPMetrics(reg),
		MetricsHandler:   metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down...")

	// end open dashboard streams before waiting on in-flight requests
	payments.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	recorder.Stop()
	cancel()

	slog.Info("shutdown complete")
	return nil
}

func settingsFrom(cfg *config.Config) api.Settings {
	return api.Settings{
		School:         cfg.School,
		ItemsPerPage:   cfg.Server.ItemsPerPage,
		LoginRateLimit: cfg.Server.LoginRateLimit,
	}
}
