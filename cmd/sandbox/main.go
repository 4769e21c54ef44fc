// cmd/sandbox/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ironcore/internal/config"
	"ironcore/internal/sandbox"
	"ironcore/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to load config", zap.Error(err))
	}
	log, err := cfg.NewLogger()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName+"-sandbox", log)
	if err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	if err := sandbox.Seed(ctx, store, time.Now()); err != nil {
		log.Fatal("failed to seed classes", zap.Error(err))
	}
	if err := sandbox.EnsureAdmin(ctx, store, cfg.SandboxAdminUser, cfg.SandboxAdminPass); err != nil {
		log.Fatal("failed to create admin", zap.Error(err))
	}

	faults, err := sandbox.ParseFaults(cfg.SandboxFaults)
	if err != nil {
		log.Fatal("invalid SANDBOX_FAULTS", zap.Error(err))
	}
	injector := sandbox.NewFaultInjector(log, faults...)
	for _, f := range faults {
		log.Warn("fault injection enabled", zap.String("fault", f.Name))
	}

	svc := sandbox.NewService(store, sandbox.Options{Logger: log})
	sessions := sandbox.NewSessionManager(svc, []byte(cfg.SandboxSessionKey), cfg.SandboxSecure, log)
	handler := sandbox.NewHandler(svc, sessions, log)

	srv := &http.Server{
		Addr:              cfg.SandboxAddr,
		Handler:           sandbox.NewServer(handler, sessions, injector.Middleware),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("sandbox listening", zap.String("addr", cfg.SandboxAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", zap.Error(err))
	}
}

// openStore uses Postgres when SANDBOX_DATABASE_URL is set and memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (sandbox.Store, func(), error) {
	if cfg.SandboxDatabaseURL == "" {
		log.Info("using in-memory store")
		return sandbox.NewMemoryStore(), func() {}, nil
	}
	pg, err := sandbox.OpenPostgres(ctx, cfg.SandboxDatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using postgres store")
	return pg, func() { pg.Close() }, nil
}
