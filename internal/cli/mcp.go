package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/mcp"
)

var (
	mcpAtlasDir  string
	mcpPolicy    string
	mcpGenesis   string
	mcpAgentID   string
	mcpQueueSize int
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpAtlasDir, "atlas-dir", "", "Directory of atlas manifest YAML files")
	mcpCmd.Flags().StringVar(&mcpPolicy, "policy", "", "Path to policy YAML")
	mcpCmd.Flags().StringVar(&mcpGenesis, "genesis-seed", "", "Genesis seed for session hash chains")
	mcpCmd.Flags().StringVar(&mcpAgentID, "agent-id", "", "Agent identity for sessions started over this transport")
	mcpCmd.Flags().IntVar(&mcpQueueSize, "queue-size", 0, "Trace ingest queue size (default 256)")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the stdio tool-protocol server",
	Long: "Exposes resolution, validation, and audit tools over MCP stdio so an\n" +
		"agent runtime can be governed without a network hop.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := runtimeFromFlags(mcpAtlasDir, mcpPolicy, mcpGenesis, 0, mcpQueueSize)
	if err != nil {
		return err
	}

	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	srv := mcp.New(mcp.Config{AgentID: mcpAgentID}, res)
	return srv.Run(context.Background())
}
