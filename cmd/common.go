package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mc-resource-manager/cache"
	"mc-resource-manager/config"
	"mc-resource-manager/db"
	"mc-resource-manager/importer"
	"mc-resource-manager/logger"
	"mc-resource-manager/modrinth"
	"mc-resource-manager/resolver"
	"mc-resource-manager/resource"
	"mc-resource-manager/store"
)

// app is everything a command needs, wired from one Config.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	importer *importer.Importer
	modrinth *modrinth.Client // nil unless MODRINTH_LOOKUP is set
	registry *prometheus.Registry
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(ctx context.Context, progress importer.Progress) (*app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := logger.InitLogger(cfg.LogFile); err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, progress)
}

func newApp(ctx context.Context, cfg config.Config, progress importer.Progress) (*app, error) {
	database, err := db.Open(ctx, cfg.DatabasePath, logger.Named("db"))
	if err != nil {
		return nil, err
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	a := &app{cfg: cfg, db: database, registry: prometheus.NewRegistry()}

	opts := resolver.Options{
		Timeout: cfg.ResolveTimeout,
		Cache:   cache.New[string, resource.Identity](cfg.CacheSize, cfg.CacheTTL),
		Logger:  logger.Named("resolver"),
	}
	if cfg.ModrinthLookup {
		client, err := modrinth.NewClient(cfg)
		if err != nil {
			db.Close(database)
			return nil, fmt.Errorf("create Modrinth client: %w", err)
		}
		a.modrinth = client
		opts.Lookup = modrinth.NewProvenance(client, cfg.CacheSize, cfg.CacheTTL)
	}

	a.importer = importer.New(importer.Options{
		Resolver:    resolver.New(opts),
		Store:       store.New(database, logger.Named("store")),
		Concurrency: cfg.ImportConcurrency,
		Progress:    progress,
		Registerer:  a.registry,
		Logger:      logger.Named("importer"),
	})
	if err := a.importer.Load(ctx); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return a, nil
}

func (a *app) Close() {
	if err := db.Close(a.db); err != nil {
		logger.Log.Warnw("Failed to close database", zap.Error(err))
	}
}

// resourceDirs returns the watched subdirectories of the Minecraft directory.
func (a *app) resourceDirs() []string {
	dirs := make([]string, 0, len(config.ResourceDirs))
	for _, sub := range config.ResourceDirs {
		dirs = append(dirs, filepath.Join(a.cfg.MinecraftDir, sub))
	}
	return dirs
}
