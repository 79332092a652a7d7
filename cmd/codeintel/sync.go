package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeintel/internal/api"
	"codeintel/internal/codegraph"
	"codeintel/internal/logging"
	"codeintel/internal/sync"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register and sync projects",
}

var syncRegisterCmd = &cobra.Command{
	Use:   "register <project_id> <local_path>",
	Short: "Register a project's source directory for indexing",
	Args:  cobra.ExactArgs(2),
	RunE:  runSyncRegister,
}

var syncRunCmd = &cobra.Command{
	Use:   "run <project_id>",
	Short: "Run a full sync against a registered project",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncRun,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRegisterCmd)
	syncCmd.AddCommand(syncRunCmd)
	syncRunCmd.Flags().BoolVar(&syncWatch, "watch", false, "after the full sync, watch source_dir and re-sync changed files until interrupted")
}

func runSyncRegister(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	projectID, localPath := args[0], args[1]
	cfg := codegraph.Config{LocalPath: localPath, IsActive: true, Status: "registered"}

	state, err := svc.Registry.Register(projectID, localPath, cfg)
	if err != nil {
		return fmt.Errorf("failed to register project: %w", err)
	}

	fmt.Printf("Registered project %q at %s (storage: %s, %d existing nodes)\n",
		projectID, localPath, state.StorageDir, state.Index.NTotal())
	return nil
}

func runSyncRun(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	projectID := args[0]
	state, ok := svc.Registry.Get(projectID)
	if !ok {
		return fmt.Errorf("project not registered: %s", projectID)
	}

	result, err := svc.Sync.PerformSync(context.Background(), syncParamsFor(projectID, state), state.Store)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	state.RebuildIndex()
	if err := state.Persist(); err != nil {
		return fmt.Errorf("failed to persist project: %w", err)
	}

	fmt.Printf("Synced %q: %d scanned, %d indexed, %d deleted, %d embedded\n",
		projectID, result.FilesScanned, result.FilesIndexed, result.FilesDeleted, result.NodesEmbedded)

	if !syncWatch {
		return nil
	}
	return runWatch(logger, svc, projectID, state)
}

// runWatch starts the optional watch-mode incremental trigger: every
// changed file under the project's source directory is re-synced on the
// spot until the process receives an interrupt.
func runWatch(logger *logging.Logger, svc *services, projectID string, state *api.ProjectState) error {
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", state.SourceDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	return sync.Watch(ctx, state.SourceDir, logger, func(relPath string) {
		nodes, err := svc.Sync.SyncSingleFile(ctx, syncParamsFor(projectID, state), state.Store, relPath)
		if err != nil {
			logger.Warn("watch: file sync failed", map[string]interface{}{"file": relPath, "error": err.Error()})
			return
		}
		state.RebuildIndex()
		if err := state.Persist(); err != nil {
			logger.Warn("watch: failed to persist project", map[string]interface{}{"error": err.Error()})
		}
		fmt.Printf("Re-synced %s: %d nodes updated\n", relPath, len(nodes))
	})
}

// syncParamsFor builds a sync.Params from a registered project's state,
// mirroring internal/api's own helper of the same shape.
func syncParamsFor(projectID string, state *api.ProjectState) sync.Params {
	return sync.Params{
		ProjectID:         projectID,
		SourceDir:         state.SourceDir,
		StorageDir:        state.StorageDir,
		AllowedExtensions: state.Config.AllowedExtensions,
		Ignored:           state.Config.IgnoredPaths,
		Included:          state.Config.IncludedPaths,
	}
}
