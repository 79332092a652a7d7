package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"codeintel/internal/agent"
	"codeintel/internal/retrieval"
)

var agentMaxSteps int

var agentCmd = &cobra.Command{
	Use:   "agent <project_id> <mission>",
	Short: "Run one bounded agent mission against a registered project",
	Args:  cobra.ExactArgs(2),
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().IntVar(&agentMaxSteps, "max-steps", 0, "override agent.max_steps")
	rootCmd.AddCommand(agentCmd)
}

// stdoutEventWriter prints each streamed event as one JSON line, the CLI
// equivalent of the HTTP surface's SSE framing.
type stdoutEventWriter struct{}

func (stdoutEventWriter) Write(ev agent.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Println(string(data))
}

func runAgent(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	projectID, mission := args[0], args[1]
	state, ok := svc.Registry.Get(projectID)
	if !ok {
		return fmt.Errorf("project not registered: %s", projectID)
	}

	ctx := context.Background()
	embedding, err := svc.LLM.GenerateEmbedding(ctx, mission)
	var contextBlock string
	if err != nil {
		logger.Warn("embedding failed, proceeding without retrieved context", map[string]interface{}{"error": err.Error()})
	} else {
		candidates := state.Retrieval.Retrieve(embedding, retrieval.DefaultOptions())
		contextBlock = retrieval.BuildTMapContext(candidates)
	}

	loop := agent.NewLoop(svc.LLM, state.Tools, svc.InterLog, svc.Trace)
	if agentMaxSteps > 0 {
		loop.MaxSteps = agentMaxSteps
	} else if svc.Config.Agent.MaxSteps > 0 {
		loop.MaxSteps = svc.Config.Agent.MaxSteps
	}

	answer := loop.Run(ctx, projectID, mission, contextBlock, stdoutEventWriter{})
	fmt.Printf("\nFINAL ANSWER:\n%s\n", answer)
	return nil
}
