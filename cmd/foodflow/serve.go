package main

import (
	"context"
	"errors"
	"fmt"
	"foodflow/internal/advisory"
	"foodflow/internal/auth"
	"foodflow/internal/blob"
	"foodflow/internal/config"
	"foodflow/internal/core"
	"foodflow/internal/exports"
	"foodflow/internal/httpapi"
	s3store "foodflow/internal/infra/blob/s3"
	"foodflow/internal/live"
	"foodflow/internal/logging"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and live feed",
		Long: `Start the FoodFlow HTTP API.

Configuration is read from FOODFLOW_* environment variables. At minimum
FOODFLOW_SESSION_SECRET (32+ bytes) must be set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	gen, err := advisory.New(ctx, advisory.Config{
		Provider:        cfg.Advisor.Provider,
		GeminiAPIKey:    cfg.Advisor.GeminiAPIKey,
		GeminiModel:     cfg.Advisor.GeminiModel,
		AnthropicAPIKey: cfg.Advisor.AnthropicAPIKey,
		AnthropicModel:  cfg.Advisor.AnthropicModel,
		Timeout:         cfg.Advisor.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	var seed *core.Fixture
	if cfg.SeedDemo {
		if seed, err = core.DemoFixture(); err != nil {
			return err
		}
	}

	hub := live.NewHub(logger.Named("live"), cfg.AllowedOrigins...)
	svc := core.NewService(store,
		core.WithLogger(logger.Named("core")),
		core.WithMetricsRecorder(metrics),
		core.WithChangeSink(hub),
		core.WithAdvisor(gen),
		core.WithDemoSeed(seed),
		core.WithSyncConcurrency(cfg.SyncConcurrency),
	)

	blobs, err := blob.Open(ctx, blob.Config{
		Driver:    cfg.Blob.Driver,
		FSRoot:    cfg.Blob.FSRoot,
		FSBaseURL: cfg.Blob.FSBaseURL,
		S3: s3store.Config{
			Region:          cfg.Blob.S3Region,
			Bucket:          cfg.Blob.S3Bucket,
			Prefix:          cfg.Blob.S3Prefix,
			Endpoint:        cfg.Blob.S3Endpoint,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretKey,
			SessionToken:    cfg.Blob.S3SessionToken,
			PathStyle:       cfg.Blob.S3PathStyle,
		},
	})
	if err != nil {
		return err
	}
	worker := exports.NewWorker(svc, blobs,
		exports.WithLogger(logger.Named("exports")),
		exports.WithConcurrency(cfg.ExportWorkers),
	)
	worker.Start()

	tokens, err := auth.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Service:  svc,
			Tokens:   tokens,
			Hub:      hub,
			Exports:  worker,
			Gatherer: reg,
			Logger:   logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("blob", string(blobs.Driver())),
			zap.String("advisor", cfg.Advisor.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("export worker shutdown", zap.Error(err))
	}
	return nil
}
