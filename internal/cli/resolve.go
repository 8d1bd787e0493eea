package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/trace"
)

var (
	resolveAtlasDir     string
	resolvePolicy       string
	resolveAgentID      string
	resolveGoal         string
	resolveRiskTier     string
	resolveHints        []string
	resolveCapabilities []string
	resolveAtlasRefs    []string
	resolveDryRun       bool
	resolveExportTrace  string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveAtlasDir, "atlas-dir", "", "Directory of atlas manifest YAML files")
	resolveCmd.Flags().StringVar(&resolvePolicy, "policy", "", "Path to policy YAML")
	resolveCmd.Flags().StringVar(&resolveAgentID, "agent-id", "cli-agent", "Agent identity for the one-shot session")
	resolveCmd.Flags().StringVar(&resolveGoal, "goal", "", "Goal text to resolve")
	resolveCmd.Flags().StringVar(&resolveRiskTier, "risk-tier", "", "Declared risk tier (low/medium/high/critical)")
	resolveCmd.Flags().StringSliceVar(&resolveHints, "hint", nil, "Context hint (repeatable)")
	resolveCmd.Flags().StringSliceVar(&resolveCapabilities, "capability", nil, "Required capability (repeatable)")
	resolveCmd.Flags().StringSliceVar(&resolveAtlasRefs, "atlas", nil, "Atlas id to resolve against (repeatable, empty for all)")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "Validate only: decision without context injection")
	resolveCmd.Flags().StringVar(&resolveExportTrace, "export-trace", "", "Write the session's chained timeline to a JSONL file")
	resolveCmd.MarkFlagRequired("goal")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one goal and print the resolution JSON",
	Long: "Creates a one-shot session, resolves the goal against the loaded\n" +
		"atlases, prints the CARP resolution, and ends the session.",
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := runtimeFromFlags(resolveAtlasDir, resolvePolicy, "", 0, 0)
	if err != nil {
		return err
	}

	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	sess, err := res.CreateSession(resolveAgentID, resolveGoal)
	if err != nil {
		return err
	}

	op := protocol.OpResolve
	if resolveDryRun {
		op = protocol.OpValidate
	}

	req := &protocol.CARPRequest{
		Version:   protocol.Version,
		RequestID: protocol.NewRequestID(),
		Timestamp: protocol.UTCNowISO(),
		Operation: op,
		Requester: protocol.Requester{AgentID: resolveAgentID, SessionID: sess.ID},
		Task: protocol.Task{
			Goal:                 resolveGoal,
			RiskTier:             protocol.RiskTier(resolveRiskTier),
			ContextHints:         resolveHints,
			RequiredCapabilities: resolveCapabilities,
		},
		AtlasRefs: resolveAtlasRefs,
	}

	resolution, err := res.Resolve(sess.ID, req)
	if err != nil {
		return err
	}
	if err := res.EndSession(sess.ID); err != nil {
		return err
	}

	if resolveExportTrace != "" {
		events, err := res.GetTrace(sess.ID)
		if err != nil {
			return err
		}
		if err := trace.ExportFile(resolveExportTrace, events); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "trace exported: %s (%d events)\n", resolveExportTrace, len(events))
	}

	out, err := json.MarshalIndent(resolution, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
