package daemon

import (
	"sync"
	"time"

	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/embedder"
	"github.com/yoanbernabeu/indexd/indexer"
	"github.com/yoanbernabeu/indexd/quantizer"
	"github.com/yoanbernabeu/indexd/registry"
	"github.com/yoanbernabeu/indexd/store"
	"github.com/yoanbernabeu/indexd/throttle"
	"github.com/yoanbernabeu/indexd/watcher"
)

// SharedState is the daemon's single shared structure, passed by pointer to
// every connection handler and the maintenance loop. Each mutex guards only
// its own field; no code path holds two of them at once, so enforcement
// releases the store lock before touching the registry.
type SharedState struct {
	Config    *config.Config
	StartTime time.Time

	StoreMu sync.Mutex
	Store   store.DocumentStore

	EmbMu    sync.Mutex
	Embedder embedder.Embedder

	WatchMu sync.Mutex
	Watcher *watcher.Watcher

	RegMu    sync.Mutex
	Registry *registry.Registry

	// Throttler, Indexer, and Quantizer synchronize internally (the indexer
	// only touches the store, which has its own lock), so indexing runs
	// without StoreMu and never holds a daemon lock across an embedder call.
	Throttler *throttle.Throttler
	Indexer   *indexer.Indexer
	Quantizer *quantizer.ProductQuantizer

	StorageCapBytes int64
	MaxProjects     int
}

func NewSharedState(
	cfg *config.Config,
	st store.DocumentStore,
	emb embedder.Embedder,
	w *watcher.Watcher,
	reg *registry.Registry,
	pq *quantizer.ProductQuantizer,
) *SharedState {
	return &SharedState{
		Config:          cfg,
		StartTime:       time.Now(),
		Store:           st,
		Embedder:        emb,
		Watcher:         w,
		Registry:        reg,
		Throttler:       throttle.New(),
		Quantizer:       pq,
		StorageCapBytes: cfg.StorageCapBytes(),
		MaxProjects:     cfg.Daemon.MaxProjects,
		Indexer: indexer.New(st, emb,
			indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
			cfg.Ignore, cfg.Embedder.Parallelism),
	}
}
