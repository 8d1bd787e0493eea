// Package mcp exposes the resolver as a stdio tool-protocol server so
// agent runtimes can resolve, validate, and audit through tool calls.
package mcp

import (
	"context"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-sh/warden/internal/resolver"
)

// Config holds MCP server configuration.
type Config struct {
	AgentID string
}

// Server wraps the MCP SDK server with warden resolution tools. The mutex
// serializes access to the resolver per its concurrency contract.
type Server struct {
	mcpServer *mcpsdk.Server
	resolver  *resolver.Resolver
	agentID   string
	mu        sync.Mutex
}

// New creates an MCP server around an existing resolver.
func New(cfg Config, res *resolver.Resolver) *Server {
	agentID := cfg.AgentID
	if agentID == "" {
		agentID = "mcp-agent"
	}

	s := &Server{
		resolver: res,
		agentID:  agentID,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "warden",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all warden tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_session_start",
		Description: "Start a governed session. Every later resolution is chained into this session's audit trail.",
	}, s.handleSessionStart)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_session_end",
		Description: "End a session. Appends the terminal event and freezes the audit chain.",
	}, s.handleSessionEnd)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_resolve",
		Description: "Resolve a goal against loaded atlases: returns the decision, injected context blocks, and allowed/denied actions.",
	}, s.handleResolve)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_validate",
		Description: "Dry-run a goal against policy without injecting context or consuming rate quota.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_trace",
		Description: "Return the session's full hash-chained event timeline.",
	}, s.handleTrace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_verify",
		Description: "Verify the session's hash chain and report where it breaks, if anywhere.",
	}, s.handleVerify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "warden_atlases",
		Description: "List loaded atlas ids.",
	}, s.handleAtlases)
}
