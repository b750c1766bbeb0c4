package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/noor/internal/bookmarks"
	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/config"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/playback"
	"github.com/MrSnakeDoc/noor/internal/playback/oto"
	"github.com/MrSnakeDoc/noor/internal/sources/alquran"
	"github.com/MrSnakeDoc/noor/internal/storage"
	redisstore "github.com/MrSnakeDoc/noor/internal/storage/redis"
	"github.com/MrSnakeDoc/noor/internal/storage/sqlite"
)

// openStorage connects the configured key-value backend.
func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		log.Warn("memory storage: bookmarks are lost on restart")
		return storage.NewMemory(), nil

	case config.StorageFile:
		return storage.NewFile(cfg.StorageDir)

	case config.StorageSQLite:
		return sqlite.Open(cfg.SQLitePath)

	case config.StorageRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redisstore.Connect(ctx, redisstore.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// openAudio opens the configured audio backend. Without a usable sound
// device it falls back to the simulated backend so the API stays up.
func openAudio(cfg *config.Config, log logger.Logger) playback.Backend {
	sim := playback.NewSim(cfg.SimLoadDelay, cfg.SimClipLength)
	if cfg.AudioBackend == config.AudioSim {
		return sim
	}

	out, err := oto.New(cfg.OtoSampleRate, &http.Client{Timeout: cfg.AudioFetchTime})
	if err != nil {
		log.Warn("audio device unavailable, using simulated playback",
			logger.Error(err))
		return sim
	}
	return out
}

// remoteSource returns the alquran client, or nil when it is disabled.
func remoteSource(cfg *config.Config) (catalog.Fetcher, error) {
	if cfg.RemoteDisabled() {
		return nil, nil
	}

	client, err := alquran.NewClient(
		cfg.AlQuranURL,
		cfg.AudioEdition,
		cfg.TranslationEdition,
		&http.Client{Timeout: cfg.AlQuranTimeout},
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// bookmarkLogger reports bookmark changes in the log.
func bookmarkLogger(log logger.Logger) bookmarks.Notifier {
	return func(e bookmarks.Event) {
		switch e.Kind {
		case bookmarks.EventPersistFailed:
			log.Warn("bookmark change kept in memory only",
				logger.String("id", e.Bookmark.ID),
				logger.Error(e.Err))
		default:
			log.Info("bookmark "+string(e.Kind),
				logger.String("id", e.Bookmark.ID),
				logger.String("type", string(e.Bookmark.Type)),
				logger.String("reference", e.Bookmark.Reference))
		}
	}
}
