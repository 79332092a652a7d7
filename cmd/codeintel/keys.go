package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the rotating API-key/model credential pool",
}

var keysRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reread the credentials file from disk",
	RunE:  runKeysRefresh,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysRefreshCmd)
}

func runKeysRefresh(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	if err := svc.Credentials.Refresh(); err != nil {
		return fmt.Errorf("failed to refresh credentials: %w", err)
	}
	fmt.Printf("Credentials refreshed: %d active keys\n", svc.Credentials.ActiveKeyCount())
	return nil
}
