package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/daemon"
	"github.com/yoanbernabeu/indexd/embedder"
	"github.com/yoanbernabeu/indexd/ipc"
	"github.com/yoanbernabeu/indexd/quantizer"
	"github.com/yoanbernabeu/indexd/registry"
	"github.com/yoanbernabeu/indexd/store"
	"github.com/yoanbernabeu/indexd/watcher"
	"golang.org/x/sync/errgroup"
)

var serveBackground bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the index daemon",
	Long: `Run the indexd daemon: an IPC server on a unix socket plus a
maintenance loop that drains filesystem events, trains the quantizer, and
enforces the storage cap.

Background mode:
  indexd serve --background    Spawn the daemon detached, logging to ~/.indexd/indexd.log
  indexd stop                  Stop a background daemon`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveBackground, "background", false, "Run in background mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	stateDir := config.ConfigDir()

	if serveBackground && os.Getenv("INDEXD_BACKGROUND") == "" {
		return startBackgroundServe(stateDir)
	}

	isBackgroundChild := os.Getenv("INDEXD_BACKGROUND") != ""

	pid, err := daemon.GetRunningPID(stateDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("indexd is already running (PID %d)\nUse 'indexd stop' to stop it", pid)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := daemon.WritePIDFile(stateDir); err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePIDFile(stateDir); err != nil {
			log.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, pq, err := initializeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := embedder.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer emb.Close()
	if err := emb.Warmup(ctx); err != nil {
		log.Printf("Warning: embedder warmup failed: %v", err)
	}

	w, err := watcher.New(cfg.Ignore, time.Duration(cfg.Watch.DebounceMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer w.Close()

	reg := registry.New(cfg.Discovery.Roots, cfg.Discovery.MaxDepth)

	state := daemon.NewSharedState(cfg, st, emb, w, reg, pq)

	srv := ipc.NewServer(state, cfg.SocketPath())
	if err := srv.Listen(); err != nil {
		return err
	}

	// Signal the parent (and anyone polling) that we accept requests.
	if err := daemon.WriteReadyFile(stateDir); err != nil {
		log.Printf("Warning: failed to write ready file: %v", err)
	}
	defer func() {
		if err := daemon.RemoveReadyFile(stateDir); err != nil {
			log.Printf("Warning: failed to remove ready file: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	stopCh := daemon.StopChannel()

	go func() {
		select {
		case <-sigChan:
			log.Println("Signal received, shutting down...")
		case <-stopCh:
			log.Println("Stop file detected, shutting down...")
		case <-srv.ShutdownRequested():
			log.Println("Shutdown requested over IPC...")
		case <-ctx.Done():
		}
		cancel()
	}()

	if !isBackgroundChild {
		fmt.Printf("indexd listening on %s (Press Ctrl+C to stop)\n", cfg.SocketPath())
	} else {
		log.Printf("indexd listening on %s", cfg.SocketPath())
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gCtx)
	})
	g.Go(func() error {
		state.RunMaintenance(gCtx)
		return nil
	})

	runErr := g.Wait()

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer persistCancel()
	if err := st.Persist(persistCtx); err != nil {
		log.Printf("Warning: failed to persist index on shutdown: %v", err)
	}

	return runErr
}

// initializeStore builds the configured backend. The product quantizer only
// applies to the gob backend; postgres searches full-precision vectors
// server-side.
func initializeStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, *quantizer.ProductQuantizer, error) {
	switch cfg.Store.Backend {
	case "gob":
		pq, err := quantizer.New(cfg.Embedder.GetDimensions(), cfg.Quantizer.Subspaces, cfg.Quantizer.Centroids)
		if err != nil {
			log.Printf("Warning: quantizer disabled: %v", err)
			pq = nil
		}
		gobStore := store.NewGOBStore(config.IndexPath())
		if pq != nil {
			gobStore.AttachQuantizer(pq)
		}
		if err := gobStore.Load(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to load index: %w", err)
		}
		return gobStore, pq, nil
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN, cfg.Embedder.GetDimensions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return st, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Store.Backend)
	}
}

func startBackgroundServe(stateDir string) error {
	pid, err := daemon.GetRunningPID(stateDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("indexd is already running (PID %d)", pid)
	}

	childPID, exitCh, err := daemon.SpawnBackground(stateDir, []string{"serve"})
	if err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	// Poll for the ready file, bailing out early if the child dies.
	const startupTimeout = 30 * time.Second
	const pollInterval = 250 * time.Millisecond
	deadline := time.Now().Add(startupTimeout)

	for time.Now().Before(deadline) {
		if daemon.IsReady(stateDir) {
			fmt.Printf("indexd started (PID %d)\n", childPID)
			fmt.Printf("Logs: %s\n", daemon.LogPath(stateDir))
			fmt.Printf("\nUse 'indexd status' to check the index\n")
			fmt.Printf("Use 'indexd stop' to stop the daemon\n")
			return nil
		}

		select {
		case <-exitCh:
			return fmt.Errorf("background process failed to start (check logs at %s)", daemon.LogPath(stateDir))
		default:
		}

		time.Sleep(pollInterval)
	}

	return fmt.Errorf("timeout waiting for daemon to become ready after %v (check logs at %s)", startupTimeout, daemon.LogPath(stateDir))
}
