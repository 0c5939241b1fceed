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

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/orbit-news/app/api"
	"github.com/lysyi3m/orbit-news/app/cfg"
	"github.com/lysyi3m/orbit-news/app/database"
	"github.com/lysyi3m/orbit-news/app/favorites"
	"github.com/lysyi3m/orbit-news/app/feed"
	"github.com/lysyi3m/orbit-news/app/logging"
	"github.com/lysyi3m/orbit-news/app/tasks"
)

func main() {
	config, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if config == nil {
		// Help was shown
		return
	}

	logging.Setup(config.Debug, config.JSONLogs)
	config.ApplyTimezone()

	if err := run(config); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(config *cfg.Cfg) error {
	slog.Info("Starting Orbit News server", "version", config.Version)

	favoritesStore, db := openFavorites(config)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("Failed to close database", "error", err)
			}
		}()
	}

	configCache := feed.NewConfigCache(config.FeedsDir, feed.Defaults{
		URL:             config.BaseURL,
		PageSize:        config.PageSize,
		RefreshInterval: config.SchedulerInterval,
		Timeout:         int(config.RequestTimeout / time.Second),
	})
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}

	registry := feed.NewRegistry(configCache.GetEnabledConfigs(), func(c *feed.Config) feed.PageGetter {
		return feed.NewClient(c.RequestTimeout(), config.UserAgent)
	})
	slog.Info("Feed sources loaded", "count", registry.Len(), "configured", configCache.GetConfigCount())

	sources := lo.Map(registry.Stores(), func(s *feed.Store, _ int) tasks.FeedSource { return s })
	scheduler := tasks.NewScheduler(sources, favoritesStore,
		time.Duration(config.SchedulerInterval)*time.Second, config.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	var documentOpts []feed.ClientOption
	if !config.ReaderAllowPrivate {
		documentOpts = append(documentOpts, feed.PublicOnly())
	}

	handler := api.NewHandler(
		registry,
		favoritesStore,
		feed.NewGenerator(config.PublicBaseURL(), config.Version),
		feed.NewContentExtractor(),
		feed.NewClient(config.RequestTimeout, config.UserAgent, documentOpts...),
		scheduler,
	)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler, config.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * config.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", config.Port, "public_url", config.PublicBaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Orbit News server shutdown complete")
	return nil
}

// openFavorites opens the favorites database. Any failure leaves the
// service running with favorites unavailable.
func openFavorites(config *cfg.Cfg) (*favorites.Store, *database.DB) {
	db, err := database.NewConnection(config.DBPath, config.BusyTimeout)
	if err != nil {
		slog.Error("Favorites database unavailable", "path", config.DBPath, "error", err)
		return favorites.NewStore(nil), nil
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Favorites migrations failed", "path", config.DBPath, "error", err)
		_ = db.Close()
		return favorites.NewStore(nil), nil
	}
	slog.Info("Favorites database ready", "path", config.DBPath, "schema_version", version, "dirty", dirty)

	return favorites.NewStore(database.NewFavoriteRepository(db)), db
}
