package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/atlas"
	"github.com/halcyon-sh/warden/internal/server"
)

var (
	serveAtlasDir  string
	servePolicy    string
	serveGenesis   string
	servePort      int
	serveQueueSize int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAtlasDir, "atlas-dir", "", "Directory of atlas manifest YAML files")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveGenesis, "genesis-seed", "", "Genesis seed for session hash chains")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "REST listen port (default 8787)")
	serveCmd.Flags().IntVar(&serveQueueSize, "queue-size", 0, "Trace ingest queue size (default 256)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST resolution server",
	Long: "Runs warden as a central resolution server over HTTP.\n" +
		"Supports hot-reload of atlas manifests on file change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := runtimeFromFlags(serveAtlasDir, servePolicy, serveGenesis, servePort, serveQueueSize)
	if err != nil {
		return err
	}

	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := server.New(server.Config{Port: cfg.Port}, res, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload: re-read the atlas directory and replace the registry
	// under the server's resolver lock.
	if cfg.AtlasDir != "" {
		reloader, err := atlas.NewReloader(cfg.AtlasDir, func() error {
			manifests, err := atlas.LoadDir(cfg.AtlasDir)
			if err != nil {
				return err
			}
			return srv.ReloadAtlases(func() error {
				return res.ReplaceAtlases(manifests)
			})
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down resolution server...")
		cancel()
	}()

	return srv.Start(ctx)
}
