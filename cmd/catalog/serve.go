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

	"github.com/spf13/cobra"

	"locallibrary/internal/app"
	"locallibrary/internal/config"
	"locallibrary/internal/server"
	"locallibrary/internal/util"
	"locallibrary/pkg/events"
	"locallibrary/pkg/storage"
	"locallibrary/pkg/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Load)
		if err != nil {
			return err
		}

		st, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer st.Close()

		var objects storage.ObjectStore
		if cfg.CoversEnabled() {
			minioStore, err := storage.NewMinioStore(storage.MinioConfig{
				Endpoint:  cfg.MinioEndpoint,
				AccessKey: cfg.MinioAccessKey,
				SecretKey: cfg.MinioSecretKey,
				Bucket:    cfg.MinioBucket,
				UseSSL:    cfg.MinioUseSSL,
			})
			if err != nil {
				return fmt.Errorf("init object storage: %w", err)
			}
			objects = minioStore
		}

		var publisher events.Publisher
		if cfg.RedisAddr != "" {
			feed, err := events.NewRedisFeed(events.RedisFeedConfig{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				Stream:   cfg.EventStream,
			})
			if err != nil {
				return fmt.Errorf("init change feed: %w", err)
			}
			defer feed.Close()
			publisher = feed
		}

		appCore, err := app.New(app.Config{Store: st, Objects: objects, Events: publisher})
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}
		trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return fmt.Errorf("parse trusted proxies: %w", err)
		}
		httpServer, err := server.New(server.Config{
			App:            appCore,
			TrustedProxies: trusted,
			MaxUploadBytes: cfg.MaxUploadBytes,
			TemplatesDir:   cfg.TemplatesDir,
		})
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}

		addr := ":" + cfg.Port
		srv := &http.Server{
			Addr:         addr,
			Handler:      httpServer.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("catalog server listening", "addr", addr, "covers", cfg.CoversEnabled(), "feed", cfg.RedisAddr != "")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}
