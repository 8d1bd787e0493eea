package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/trace"
)

var verifyGenesis string

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyGenesis, "genesis-seed", trace.GenesisSeed, "Genesis seed the chain was started with")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <trace.jsonl>",
	Short: "Verify an exported trace file's hash chain",
	Long: "Walks an exported JSONL timeline, recomputing every event hash and\n" +
		"previous-hash link. Exits non-zero when the chain is broken.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := trace.VerifyFile(args[0], verifyGenesis)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))

		if !result.Valid {
			return fmt.Errorf("chain invalid at index %d: %s", result.FirstInvalidIndex, result.Message)
		}
		return nil
	},
}
