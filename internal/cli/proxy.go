package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halcyon-sh/warden/internal/proxy"
)

var (
	proxyAtlasDir string
	proxyPolicy   string
	proxyGenesis  string
	proxyAgentID  string
	proxyPort     int
)

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyAtlasDir, "atlas-dir", "", "Directory of atlas manifest YAML files")
	proxyCmd.Flags().StringVar(&proxyPolicy, "policy", "", "Path to policy YAML")
	proxyCmd.Flags().StringVar(&proxyGenesis, "genesis-seed", "", "Genesis seed for session hash chains")
	proxyCmd.Flags().StringVar(&proxyAgentID, "agent-id", "", "Agent identity for the proxy session")
	proxyCmd.Flags().IntVar(&proxyPort, "port", 0, "Proxy listen port (default 8788)")
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Start the governed forward HTTP proxy",
	Long: "Point an agent's HTTP_PROXY here: every outbound request becomes an\n" +
		"execute-operation resolution and only proceeds on allow.",
	RunE: runProxy,
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := runtimeFromFlags(proxyAtlasDir, proxyPolicy, proxyGenesis, 0, 0)
	if err != nil {
		return err
	}
	if proxyPort != 0 {
		cfg.ProxyPort = proxyPort
	}

	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv, err := proxy.NewServer(proxy.Config{Port: cfg.ProxyPort, AgentID: proxyAgentID}, res, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down proxy...")
		cancel()
	}()

	return srv.Start(ctx)
}
