package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/noor/internal/logger"
)

// Warmer loads persisted surahs into memory.
type Warmer interface {
	Warm(ctx context.Context) (int, error)
}

// CacheSyncer loads cached remote surahs into the catalog on startup
type CacheSyncer struct {
	warmer Warmer
	logger logger.Logger
}

// NewCacheSyncer creates a new cache syncer
func NewCacheSyncer(w Warmer, log logger.Logger) *CacheSyncer {
	return &CacheSyncer{warmer: w, logger: log}
}

// Sync loads every cached surah. A failure only means colder starts.
func (cs *CacheSyncer) Sync(ctx context.Context) error {
	cs.logger.Info("syncing cached surahs into catalog")

	n, err := cs.warmer.Warm(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		cs.logger.Info("no cached surahs found")
		return nil
	}

	cs.logger.Info("synced cached surahs",
		logger.Int("count", n))
	return nil
}
