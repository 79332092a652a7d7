package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"codeintel/internal/retrieval"
)

var queryMaxNodes int

var queryCmd = &cobra.Command{
	Use:   "query <project_id> <prompt>",
	Short: "Retrieve and print context candidates for a prompt",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryMaxNodes, "max-nodes", 0, "override retrieval.max_nodes")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	projectID, prompt := args[0], args[1]
	state, ok := svc.Registry.Get(projectID)
	if !ok {
		return fmt.Errorf("project not registered: %s", projectID)
	}

	embedding, err := svc.LLM.GenerateEmbedding(context.Background(), prompt)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	opts := retrieval.DefaultOptions()
	if queryMaxNodes > 0 {
		opts.MaxNodes = queryMaxNodes
	}
	candidates := state.Retrieval.Retrieve(embedding, opts)

	for i, c := range candidates {
		if c.Node == nil {
			continue
		}
		fmt.Printf("%3d. [%.4f] %s (%s)\n", i+1, c.FinalScore, c.Node.ID, c.Node.FilePath)
	}
	fmt.Printf("\n%d candidates\n", len(candidates))
	return nil
}
