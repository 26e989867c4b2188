package main

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/genfinity/covergen/internal/adapter/repo"
	"github.com/genfinity/covergen/internal/branding"
	"github.com/genfinity/covergen/internal/compositor"
	"github.com/genfinity/covergen/internal/http/handlers"
	"github.com/genfinity/covergen/internal/http/httpapi"
	"github.com/genfinity/covergen/internal/inference"
	"github.com/genfinity/covergen/internal/infra"
	"github.com/genfinity/covergen/internal/jobstore"
	"github.com/genfinity/covergen/internal/orchestrator"
	"github.com/genfinity/covergen/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	var backend storage.Backend = fileStore
	var coverRepo *repo.CoverRepositoryPG
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		coverRepo = repo.NewCoverRepository(pool, fileStore)
		backend = coverRepo
	}

	resolver := branding.NewResolver(loadBrandingTable(ctx, cfg, coverRepo, logger))
	logger.Info().Int("aliases", resolver.Len()).Msg("branding table loaded")

	comp, err := compositor.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize compositor")
	}

	var engine inference.Engine = inference.NewSyntheticEngine()
	if cfg.EngineBaseURL != "" {
		engine = inference.NewRemoteEngine(inference.RemoteOptions{
			BaseURL: cfg.EngineBaseURL,
			APIKey:  cfg.EngineAPIKey,
			Timeout: cfg.InferenceTimeout,
		})
	} else {
		logger.Warn().Msg("no inference endpoint configured, using synthetic canvases")
	}

	watermark := loadWatermark(cfg.WatermarkPath, logger)

	store := jobstore.New(cfg.IdempotencyWindow)
	orch := orchestrator.New(orchestrator.Config{
		MaxWidth:         cfg.MaxImageWidth,
		MaxHeight:        cfg.MaxImageHeight,
		InferenceTimeout: cfg.InferenceTimeout,
		QueueCapacity:    cfg.QueueCapacity,
	}, store, resolver, engine, comp, backend, watermark, logger)

	app := handlers.NewApp(orch, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := orch.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("service stopped with error")
		return
	}
	logger.Info().Msg("service stopped")
}

// loadBrandingTable prefers the database mapping, then a table file, then
// the built-in defaults.
func loadBrandingTable(ctx context.Context, cfg *infra.Config, coverRepo *repo.CoverRepositoryPG, logger infra.Logger) map[string]branding.Descriptor {
	if coverRepo != nil {
		table, err := coverRepo.BrandingAliases(ctx)
		if err == nil && len(table) > 0 {
			return table
		}
		if err != nil {
			logger.Warn().Err(err).Msg("branding aliases unavailable from database")
		}
	}
	if cfg.BrandingTablePath != "" {
		table, err := branding.LoadTable(cfg.BrandingTablePath)
		if err == nil {
			return table
		}
		logger.Warn().Err(err).Msg("branding table file unreadable, using defaults")
	}
	return branding.DefaultTable()
}

func loadWatermark(path string, logger infra.Logger) image.Image {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Msg("watermark unreadable, covers will be unwatermarked")
		return nil
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		logger.Warn().Err(err).Msg("watermark undecodable, covers will be unwatermarked")
		return nil
	}
	return img
}
