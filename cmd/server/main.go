package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"radio-api/internal/config"
	"radio-api/internal/factory"
	"radio-api/internal/handler"
	"radio-api/internal/util"
)

func main() {
	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	router := setupRouter(f)

	var serverAddr string
	if cfg.Server.EnableTLS {
		serverAddr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
	} else {
		serverAddr = cfg.GetServerAddress()
	}

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	startBackgroundWorkers(ctx, group, f)

	if cfg.Server.EnableTLS {
		server.TLSConfig = f.TLSManager().GetTLSConfig()

		if cfg.IsProduction() && cfg.Server.AutoCert {
			runProductionServerWithAutoCert(ctx, group, f, server, cfg, router)
			waitAndReport(group, f)
			return
		}

		util.Info("Starting HTTPS server",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.TLSPort),
			util.Bool("auto_cert", cfg.Server.AutoCert),
		)
	} else {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
	}

	runServer(ctx, group, server, cfg)
	waitAndReport(group, f)
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) http.Handler {
	serviceFactory := f.ServiceFactory()

	deps := handler.RouterDeps{
		Config:        f.Config(),
		TokenHandler:  handler.NewTokenHandler(serviceFactory.TokenService()),
		Comments:      handler.NewCommentHandler(serviceFactory.CommentService()),
		Stream:        handler.NewStreamHandler(serviceFactory.StreamService()),
		Admin:         handler.NewAdminHandler(serviceFactory.CommentService(), f.SessionWindow()),
		SessionWindow: f.SessionWindow(),
		EventLog:      f.EventLog(),
		Auditor:       f.AuditPublisher(),
		Fingerprint:   f.FingerprintManager(),
		Hasher:        f.Hasher(),
		HealthCheck: func(r *http.Request) map[string]string {
			components := map[string]string{"mysql": "ok", "redis": "ok"}
			for name, err := range f.HealthCheck(r.Context()) {
				components[name] = err.Error()
			}
			return components
		},
	}
	return handler.NewRouter(deps, util.Get())
}

// startBackgroundWorkers launches the token sweeper, the rate-limit event
// purger and (when configured) the audit archiver.
func startBackgroundWorkers(ctx context.Context, group *errgroup.Group, f *factory.Factory) {
	cfg := f.Config()
	tokenService := f.ServiceFactory().TokenService()

	group.Go(func() error {
		err := tokenService.RunSweeper(ctx, cfg.CSRF.SweepInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		ticker := time.NewTicker(cfg.RateLimit.EventSweepInterval)
		defer ticker.Stop()
		util.Info("Rate limit event sweeper started",
			util.Duration("interval", cfg.RateLimit.EventSweepInterval))
		for {
			select {
			case <-ctx.Done():
				util.Info("Rate limit event sweeper stopped")
				return nil
			case <-ticker.C:
				if deleted, err := f.EventLog().Sweep(ctx); err != nil {
					util.Error("Rate limit event sweep failed", util.ErrorField(err))
				} else if deleted > 0 {
					util.Info("Rate limit events purged", util.Int64("deleted", deleted))
				}
			}
		}
	})

	if archiver := f.AuditArchiver(); archiver != nil {
		group.Go(func() error {
			err := archiver.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
}

func runProductionServerWithAutoCert(ctx context.Context, group *errgroup.Group, f *factory.Factory, server *http.Server, cfg *config.Config, router http.Handler) {
	autoCertManager := f.TLSManager().GetAutocertManager()
	if autoCertManager == nil {
		util.Fatal("AutoCert manager is not available in production")
	}

	// HTTP server for ACME challenge and redirect only
	httpServer := &http.Server{
		Addr:    ":80",
		Handler: autoCertManager.HTTPHandler(nil),
	}

	httpsServer := &http.Server{
		Addr:      ":443",
		Handler:   router,
		TLSConfig: server.TLSConfig,
	}

	group.Go(func() error {
		util.Info("Starting HTTP redirect server on port 80")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http redirect server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		util.Info("Starting HTTPS server with AutoCert on port 443",
			util.String("domain", cfg.Server.Domain),
		)
		if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("https autocert server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		return shutdownServers(httpsServer, httpServer)
	})
}

func runServer(ctx context.Context, group *errgroup.Group, server *http.Server, cfg *config.Config) {
	group.Go(func() error {
		var err error
		if cfg.Server.EnableTLS {
			if cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" {
				err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
			} else {
				err = server.ListenAndServeTLS("", "")
			}
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.String("address", server.Addr),
	)

	group.Go(func() error {
		<-ctx.Done()
		return shutdownServers(server)
	})
}

func shutdownServers(servers ...*http.Server) error {
	util.Info("Shutting down HTTP servers")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
			shutdownErr = err
		} else {
			util.Info("Server shutdown completed")
		}
	}
	return shutdownErr
}

func waitAndReport(group *errgroup.Group, f *factory.Factory) {
	if err := group.Wait(); err != nil {
		util.Error("Service exited with error", util.ErrorField(err))
		f.Close()
		os.Exit(1)
	}
	util.Info("Service exited cleanly")
}
