package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmemory/xmemory/cmd/xmemoryd/handlers"
	"github.com/xmemory/xmemory/internal/auth"
	"github.com/xmemory/xmemory/internal/cloud"
	"github.com/xmemory/xmemory/internal/config"
	"github.com/xmemory/xmemory/internal/db"
	"github.com/xmemory/xmemory/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	logging.Init(os.Stdout, logging.ParseLevel(cfg.Log.Level))

	database, err := db.Open(cfg.Data.Dir)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		return err
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()
	admin := db.NewAdminRepository(database.DB)

	hub := NewWSHub()
	svc := cloud.NewService(repo, admin, hub, cfg.Sync.RetentionOnSync)
	verifier := auth.NewVerifier(admin)

	mux := buildMux(repo, svc, verifier, hub)

	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("xmemoryd listening", map[string]interface{}{
			"addr": cfg.Server.Listen,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildMux wires the REST surface. Everything under /api/cloud sits behind
// session auth; /api/health does not.
func buildMux(repo *db.Repository, svc *cloud.Service, verifier *auth.Verifier, hub *WSHub) *http.ServeMux {
	syncHandler := handlers.NewSyncHandler(svc)
	memoryHandler := handlers.NewMemoryHandler(repo, svc)
	versionHandler := handlers.NewVersionHandler(repo, svc)

	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.Handler {
		return verifier.Middleware(h)
	}

	mux.Handle("POST /api/cloud/sync", protected(syncHandler.Sync))
	mux.Handle("GET /api/cloud/memories", protected(memoryHandler.List))
	mux.Handle("GET /api/cloud/memories/{id}", protected(memoryHandler.Get))
	mux.Handle("PATCH /api/cloud/memories/{id}", protected(memoryHandler.Rename))
	mux.Handle("DELETE /api/cloud/memories/{id}", protected(memoryHandler.Delete))
	mux.Handle("GET /api/cloud/memories/{id}/versions", protected(versionHandler.List))
	mux.Handle("POST /api/cloud/memories/{id}/versions", protected(versionHandler.Get))
	mux.Handle("POST /api/cloud/memories/{id}/restore", protected(versionHandler.Restore))
	mux.Handle("GET /api/cloud/memories/{id}/download", protected(memoryHandler.Download))
	mux.Handle("GET /api/cloud/stats", protected(memoryHandler.Stats))
	mux.Handle("GET /api/cloud/events", protected(hub.HandleWS))

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"xmemoryd"}`))
	})

	return mux
}
