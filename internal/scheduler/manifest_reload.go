package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/sources/manifest"
)

// ManifestReloader handles periodic reloading of the recitation manifest
type ManifestReloader struct {
	loader        *manifest.Loader
	mapper        *manifest.Mapper
	catalog       *catalog.Memory
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewManifestReloader creates a new manifest reloader
func NewManifestReloader(
	manifestFile string,
	cat *catalog.Memory,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ManifestReloader {
	return &ManifestReloader{
		loader:        manifest.NewLoader(manifestFile),
		mapper:        manifest.NewMapper(filepath.Dir(manifestFile)),
		catalog:       cat,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the manifest once, then again on every tick or manual trigger.
func (mr *ManifestReloader) Start(ctx context.Context) error {
	if err := mr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(mr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := mr.Reload(ctx); err != nil {
					mr.logger.Error("failed to reload manifest",
						logger.Error(err))
				}
			case <-mr.manualTrigger:
				mr.logger.Info("manual reload triggered")
				if err := mr.Reload(ctx); err != nil {
					mr.logger.Error("failed to reload manifest",
						logger.Error(err))
				}
			case <-mr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (mr *ManifestReloader) Stop() {
	close(mr.stopCh)
}

// Reload reads the manifest and swaps the manifest part of the catalog.
// On error the catalog keeps its previous content.
func (mr *ManifestReloader) Reload(_ context.Context) error {
	mr.logger.Info("reloading recitation manifest",
		logger.String("file", mr.loader.Path()))

	m, err := mr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	surahs, problems, err := mr.mapper.MapSurahs(m)
	for _, p := range problems {
		mr.logger.Warn("manifest entry skipped", logger.String("reason", p))
	}
	if err != nil {
		return fmt.Errorf("failed to map manifest: %w", err)
	}

	dropped := mr.droppedSurahs(surahs)
	if len(dropped) > 0 {
		mr.logger.Info("surahs no longer in manifest",
			logger.Int("count", len(dropped)))
	}

	mr.catalog.ReplaceManifest(surahs)

	mr.logger.Info("loaded surahs from manifest",
		logger.Int("count", len(surahs)),
		logger.Int("skipped", len(problems)))
	return nil
}

// droppedSurahs returns the manifest surahs the catalog holds that next
// does not list anymore.
func (mr *ManifestReloader) droppedSurahs(next []*domain.Surah) []int {
	listed := make(map[int]bool, len(next))
	for _, s := range next {
		listed[s.Number] = true
	}

	var dropped []int
	for _, s := range mr.catalog.All() {
		if s.Source == domain.SourceManifest && !listed[s.Number] {
			dropped = append(dropped, s.Number)
		}
	}
	return dropped
}
