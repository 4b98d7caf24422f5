// Command integrations serves the OAuth credential broker over HTTP.
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

	glog "github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	integrations "github.com/goliatone/go-integrations"
	"github.com/goliatone/go-integrations/adapters/gojob"
	"github.com/goliatone/go-integrations/adapters/gologger"
	"github.com/goliatone/go-integrations/adapters/prometheus"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/httpapi"
	"github.com/goliatone/go-integrations/security"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "integrations: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loggers, zapLogger, err := gologger.NewProductionProvider(cfg.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := loggers.GetLogger("integrations.cmd")

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.close(); closeErr != nil {
			logger.Warn("store close failed", "error", closeErr.Error())
		}
	}()

	providers, err := integrations.BuildProviders(cfg.Providers)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		logger.Warn("no providers configured, set HUBSPOT_CLIENT_ID, NOTION_CLIENT_ID or AIRTABLE_CLIENT_ID")
	}

	codec, err := credentialCodec(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	recorder := prometheus.NewRecorder()
	service, err := integrations.NewService(integrations.DefaultConfig(),
		integrations.WithLoggerProvider(loggers),
		integrations.WithCredentialCodec(codec),
		integrations.WithMetricsRecorder(recorder),
		integrations.WithConfigProvider(core.NewCfgxConfigProvider(core.MapConfigLoader(cfg.Service))),
		integrations.WithOptionsResolver(core.GoOptionsResolver{}),
		integrations.WithKeyValueStore(b.store),
		integrations.WithKeyLocker(b.locker),
		integrations.WithProviders(providers...),
	)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	facade, err := integrations.NewFacade(service)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(facade, httpapi.Config{
		DefaultUserID:  cfg.DefaultUserID,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         loggers.GetLogger("integrations.http"),
		MetricsHandler: recorder.Handler(),
		Debug:          cfg.Debug,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Addr, "providers", facade.Providers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if sweeper, ok := b.Sweeper(); ok {
		if err := startSweep(gctx, g, sweeper, cfg.SweepInterval, loggers.GetLogger("integrations.sweep")); err != nil {
			return err
		}
	}

	return g.Wait()
}

// credentialCodec seals stored credentials when an encryption key is set.
func credentialCodec(key string) (core.CredentialCodec, error) {
	if key == "" {
		return core.JSONCredentialCodec{}, nil
	}
	sealer, err := security.NewAppKeySealer(key)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	codec, err := security.NewSealedCodec(sealer, core.JSONCredentialCodec{})
	if err != nil {
		return nil, err
	}
	return codec, nil
}

// startSweep runs the expired-entry scheduler and worker on a local queue.
func startSweep(ctx context.Context, g *errgroup.Group, sweeper core.ExpiredSweeper, interval time.Duration, logger glog.Logger) error {
	q := gojob.NewLocalQueue(8)
	scheduler, err := gojob.NewScheduler(q, interval)
	if err != nil {
		return err
	}
	worker, err := gojob.NewSweepWorker(q, sweeper,
		gojob.WithLogger(logger),
		gojob.WithHook(gojob.NewLoggingHook(logger)),
	)
	if err != nil {
		return err
	}
	g.Go(func() error {
		defer q.Close()
		if err := scheduler.EnqueueNow(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return scheduler.Run(ctx)
	})
	g.Go(func() error { return worker.Run(ctx) })
	logger.Info("expiry sweep scheduled", "interval", interval.String())
	return nil
}
