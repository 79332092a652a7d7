package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codeintel/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize codeintel configuration",
	Long:  "Creates a .codeintel/ directory with default configuration in the current repository root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .codeintel directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	storeDir := filepath.Join(cwd, ".codeintel")
	if _, statErr := os.Stat(storeDir); statErr == nil {
		if !initForce {
			fmt.Println("codeintel already initialized.")
			fmt.Printf("Configuration at: %s\n", filepath.Join(storeDir, "config.json"))
			fmt.Println("\nRun 'codeintel init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(storeDir); removeErr != nil {
			return fmt.Errorf("failed to remove existing .codeintel directory: %w", removeErr)
		}
		logger.Info("removed existing .codeintel directory", nil)
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = "."
	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	logger.Info("codeintel initialized successfully", map[string]interface{}{
		"config_path": filepath.Join(storeDir, "config.json"),
	})

	fmt.Println("codeintel initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", filepath.Join(storeDir, "config.json"))
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Create a keys.json with your API keys (see spec.md §6)")
	fmt.Println("  2. Run 'codeintel sync register <project_id> <path>' to register a project")
	fmt.Println("  3. Run 'codeintel serve' to start the API server")

	return nil
}
