package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/noor/internal/bookmarks"
	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/config"
	"github.com/MrSnakeDoc/noor/internal/httpserver"
	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/playback"
	"github.com/MrSnakeDoc/noor/internal/scheduler"
	"github.com/MrSnakeDoc/noor/internal/storage"
	"github.com/MrSnakeDoc/noor/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    storage.Store
	player   *playback.Controller
	reloader *scheduler.ManifestReloader // nil without manifest
	janitor  *scheduler.CacheJanitor
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Storage first - fail fast if unavailable
	store, err := openStorage(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s storage: %v", cfg.StorageBackend, err)
		os.Exit(1)
	}
	loggerClient.Info("storage initialized", logger.String("backend", store.Name()))

	bookmarkStore := bookmarks.Open(context.Background(), store, loggerClient,
		bookmarks.WithKey(cfg.BookmarkKey),
		bookmarks.WithTimeout(cfg.StorageTimeout),
		bookmarks.WithNotifier(bookmarkLogger(loggerClient)),
	)

	remote, err := remoteSource(cfg)
	if err != nil {
		loggerClient.Errorf("Invalid alquran settings: %v", err)
		os.Exit(1)
	}
	if remote == nil {
		loggerClient.Info("alquran api disabled, serving manifest surahs only")
	}

	cat := catalog.NewMemory()
	resolver := catalog.NewResolver(cat, store, remote, loggerClient)

	// Cached surahs from earlier runs
	syncer := scheduler.NewCacheSyncer(resolver, loggerClient)
	if err := syncer.Sync(context.Background()); err != nil {
		loggerClient.Warn("failed to load cached surahs on startup, they will be fetched again",
			logger.Error(err))
	}

	// Manifest reloader (if a manifest file is configured)
	var reloader *scheduler.ManifestReloader
	var reloadTrigger chan struct{}
	if cfg.ManifestFile != "" {
		loggerClient.Info("manifest configured, initializing manifest reloader",
			logger.String("file", cfg.ManifestFile))
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewManifestReloader(
			cfg.ManifestFile,
			cat,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
	}

	janitor := scheduler.NewCacheJanitor(
		cat,
		resolver,
		loggerClient,
		cfg.JanitorInterval,
		cfg.CacheTTL,
	)

	audio := openAudio(cfg, loggerClient)
	player := playback.NewController(audio, loggerClient.With(logger.String("audio", audio.Name())))

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Version:            version.Version,
		Commit:             version.Commit,
		BuildDate:          version.BuildDate,
		GoVersion:          version.GoVersion,
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitRefillMin: cfg.RateLimitRefillMin,
		Storage:            store,
		Catalog:            cat,
		Resolver:           resolver,
		Bookmarks:          bookmarkStore,
		Player:             player,
		AudioBackend:       audio.Name(),
		ManifestFile:       cfg.ManifestFile,
		ReloadTrigger:      reloadTrigger,
	}

	server := httpserver.New(cfg.ListenPort, loggerClient, d)

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   server,
		store:    store,
		player:   player,
		reloader: reloader,
		janitor:  janitor,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Noor v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start manifest reloader (loads surahs and starts periodic refresh)
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start manifest reloader: %w", err)
		}
		a.logger.Info("manifest reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	// Start cache janitor
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache janitor: %w", err)
	}
	a.logger.Info("cache janitor started",
		logger.Duration("interval", a.cfg.JanitorInterval),
		logger.Duration("ttl", a.cfg.CacheTTL))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.reloader != nil {
		a.reloader.Stop()
	}
	a.janitor.Stop()

	// Silences the speakers and ends open event streams, so the server
	// shutdown does not wait on them.
	if err := a.player.Close(); err != nil {
		a.logger.Warn("player did not stop cleanly", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close %s storage: %v", a.store.Name(), err)
	} else {
		a.logger.Info("✅ Storage closed cleanly", logger.String("backend", a.store.Name()))
	}

	a.logger.Info("✅ Noor stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
