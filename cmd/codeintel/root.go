package main

import (
	"github.com/spf13/cobra"
)

const codeintelVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "codeintel",
	Short: "codeintel - hybrid vector/graph code intelligence backend",
	Long: `codeintel indexes a repository into a vector+graph hybrid store and
exposes an HTTP/RPC surface for retrieval, generation, and autonomous
agent missions over the indexed codebase.`,
	Version: codeintelVersion,
}

func init() {
	rootCmd.SetVersionTemplate("codeintel version {{.Version}}\n")
}
