package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/atlas"
)

func init() {
	rootCmd.AddCommand(atlasCmd)
	atlasCmd.AddCommand(atlasValidateCmd)
	atlasCmd.AddCommand(atlasListCmd)
}

var atlasCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Inspect and validate atlas manifests",
}

var atlasValidateCmd = &cobra.Command{
	Use:   "validate <file|dir>",
	Short: "Validate atlas manifest files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		var manifests []*atlas.Manifest
		if info.IsDir() {
			manifests, err = atlas.LoadDir(path)
		} else {
			var m *atlas.Manifest
			m, err = atlas.LoadFile(path)
			manifests = []*atlas.Manifest{m}
		}
		if err != nil {
			return err
		}

		reg := atlas.NewRegistry()
		for _, m := range manifests {
			if err := reg.Load(m); err != nil {
				return err
			}
		}

		for id := range reg.List() {
			m, _ := reg.Get(id)
			fmt.Printf("ok: %s (%s): %d actions, %d context packs\n",
				m.ID, m.Version, len(m.Actions), len(m.ContextPacks))
		}
		return nil
	},
}

var atlasListCmd = &cobra.Command{
	Use:   "list <dir>",
	Short: "List manifests in a directory as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifests, err := atlas.LoadDir(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(manifests, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}
