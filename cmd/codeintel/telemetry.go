package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Print the latest process/LLM telemetry snapshot",
	RunE:  runTelemetry,
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
}

func runTelemetry(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	if svc.Collector == nil {
		return fmt.Errorf("telemetry collector unavailable")
	}

	snapshot := svc.Collector.Latest()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
