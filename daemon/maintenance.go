package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/yoanbernabeu/indexd/quantizer"
	"github.com/yoanbernabeu/indexd/store"
	"github.com/yoanbernabeu/indexd/watcher"
)

const (
	maintenanceInterval   = time.Second
	enforcementEveryTicks = 30
)

// RunMaintenance drains watcher events and applies them to the index,
// pacing itself by the throttler's current limits. Every 30th tick it runs
// storage-cap enforcement first. Returns when ctx is cancelled.
func (s *SharedState) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tick++
		if tick%enforcementEveryTicks == 0 {
			s.EnforceStorageCap(ctx)
		}
		s.maybeTrainQuantizer(ctx)

		s.WatchMu.Lock()
		events := s.Watcher.PollEvents()
		s.WatchMu.Unlock()
		if len(events) == 0 {
			continue
		}

		s.Throttler.RecordFSActivity(len(events))
		limits := s.Throttler.Limits()

		for i, event := range events {
			if err := ctx.Err(); err != nil {
				return
			}
			s.applyEvent(ctx, event)

			// Pause between batches, but never after the last event.
			if (i+1)%limits.BatchSize == 0 && i != len(events)-1 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(limits.MinDelay):
				}
			}
		}
	}
}

func (s *SharedState) applyEvent(ctx context.Context, event watcher.FileEvent) {
	switch event.Kind {
	case watcher.Created, watcher.Modified:
		root, ok := s.rootFor(event.Path)
		if !ok {
			return
		}
		// The indexer embeds over the network; the store synchronizes
		// internally, so no daemon lock is held here.
		if _, err := s.Indexer.IndexPath(ctx, root, event.Path); err != nil {
			log.Printf("Failed to reindex %s: %v", event.Path, err)
		}
	case watcher.Deleted:
		if err := s.Indexer.RemoveFile(ctx, event.Path); err != nil {
			log.Printf("Failed to remove %s from index: %v", event.Path, err)
		}
	}
}

// rootFor maps an event path to the watched root containing it.
func (s *SharedState) rootFor(path string) (string, bool) {
	s.WatchMu.Lock()
	roots := s.Watcher.WatchedPaths()
	s.WatchMu.Unlock()

	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// EnforceStorageCap evicts least-recently-used projects until both limits
// hold: the registry stays at or under MaxProjects and index storage fits
// under the byte cap. A no-op while within limits; above them, usage only
// ever shrinks.
func (s *SharedState) EnforceStorageCap(ctx context.Context) {
	for s.MaxProjects > 0 {
		s.RegMu.Lock()
		count := s.Registry.Count()
		s.RegMu.Unlock()
		if count <= s.MaxProjects {
			break
		}
		if !s.evictOne(ctx, "project count %d exceeds limit %d", count, s.MaxProjects) {
			return
		}
	}

	if s.StorageCapBytes <= 0 {
		return
	}
	for {
		s.StoreMu.Lock()
		stats, err := s.Store.Stats(ctx)
		s.StoreMu.Unlock()
		if err != nil {
			log.Printf("Warning: failed to read storage stats: %v", err)
			return
		}
		if stats.StorageBytes <= s.StorageCapBytes {
			return
		}
		if !s.evictOne(ctx, "storage usage %d exceeds cap %d", stats.StorageBytes, s.StorageCapBytes) {
			return
		}
	}
}

// evictOne drops the least-recently-used project from the registry, the
// watcher, and the store. Returns false when no project can be evicted or
// the store delete failed.
func (s *SharedState) evictOne(ctx context.Context, reasonFormat string, args ...any) bool {
	reason := fmt.Sprintf(reasonFormat, args...)

	s.RegMu.Lock()
	victim, ok := s.Registry.EvictLRU()
	s.RegMu.Unlock()
	if !ok {
		log.Printf("Warning: %s but no project can be evicted", reason)
		return false
	}

	s.WatchMu.Lock()
	if s.Watcher.IsWatching(victim) {
		if err := s.Watcher.Unwatch(victim); err != nil {
			log.Printf("Warning: failed to unwatch evicted project %s: %v", victim, err)
		}
	}
	s.WatchMu.Unlock()

	s.StoreMu.Lock()
	err := s.Store.DeleteByPrefix(ctx, victim+string(filepath.Separator))
	s.StoreMu.Unlock()
	if err != nil {
		log.Printf("Warning: failed to evict project %s: %v", victim, err)
		return false
	}
	log.Printf("Evicted project %s (%s)", victim, reason)
	return true
}

// maybeTrainQuantizer trains the product quantizer once enough raw vectors
// have accumulated, then compresses the backlog.
func (s *SharedState) maybeTrainQuantizer(ctx context.Context) {
	if s.Quantizer == nil || s.Quantizer.Trained() {
		return
	}
	gs, ok := s.Store.(*store.GOBStore)
	if !ok {
		return
	}

	s.StoreMu.Lock()
	vectors := gs.RawVectors(ctx)
	s.StoreMu.Unlock()
	if len(vectors) < quantizer.MinTrainingSamples {
		return
	}

	if err := s.Quantizer.Train(vectors); err != nil {
		log.Printf("Warning: quantizer training failed: %v", err)
		return
	}

	s.StoreMu.Lock()
	n := gs.ReencodeAll(ctx)
	s.StoreMu.Unlock()
	log.Printf("Quantizer trained on %d vectors; compressed %d chunks", len(vectors), n)
}
