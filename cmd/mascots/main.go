package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"salvadanaio/internal/backend"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/cli"
	"salvadanaio/internal/config"
	apphttp "salvadanaio/internal/http"
	"salvadanaio/internal/identity"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/mascots"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	cat, err := cli.LoadCatalog(logger, cfg.CatalogFile)
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger)

	store, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	bus := notify.NewBus(logger)

	transport, err := factory.CreateTransport(ctx, backendCfg)
	if err != nil {
		return err
	}
	var relay *notify.Relay
	if transport.Transport != nil {
		relay = notify.NewRelay(bus, transport.Transport, logger)
		relay.Start(ctx)
		defer func() {
			if err := relay.Stop(); err != nil {
				logger.Warn("Relay stop failed", applog.FieldError, err)
			}
		}()
	}

	registry := mascots.NewRegistry(mascots.RegistryConfig{
		Catalog:     cat,
		Gateway:     store.Gateway,
		Bus:         bus,
		Logger:      logger,
		IdleTimeout: cfg.SessionIdleTimeout,
	})
	feed := mascots.NewNavigationFeed(mascots.NavigationConfig{
		Catalog:   cat,
		Source:    mascots.LiveSource{Registry: registry, Catalog: cat, Gateway: store.Gateway, Logger: logger},
		Bus:       bus,
		Logger:    logger,
		CacheSize: cfg.NavCacheSize,
		CacheTTL:  cfg.NavCacheTTL,
	})
	svc := services.NewMascotService(services.MascotServiceConfig{
		Catalog:  cat,
		Gateway:  store.Gateway,
		Bus:      bus,
		Registry: registry,
		Feed:     feed,
		Logger:   logger,
	})
	defer func() { _ = svc.Close() }()

	caches := cache.NewManager(logger)
	caches.Register(feed.Cache())
	caches.Register(registry)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:    ":" + cfg.Port,
		Service: svc,
		Subjects: identity.SubjectResolver{
			Users:  identity.HeaderResolver{Header: cfg.UserHeader},
			Secure: cfg.SecureCookies,
		},
		Ready:              store.Ready,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting mascots server",
			"port", cfg.Port,
			applog.FieldBackend, string(backendCfg.Type),
			"notify", string(backendCfg.Notify))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
