// Package mcp exposes the task timer as Model Context Protocol tools and
// resources, served over the streamable HTTP transport.
package mcp

import (
	"context"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/logger"
)

// TaskManager is the subset of the task service the MCP tools drive.
type TaskManager interface {
	Views(ctx context.Context) ([]task.View, error)
	Summary(ctx context.Context) (task.Summary, error)
	View(t *task.Task) task.View
	Add(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	Start(ctx context.Context, id int64) (*task.Task, error)
	Stop(ctx context.Context, id int64) (*task.Task, error)
	Reset(ctx context.Context, id int64) (*task.Task, error)
	Move(ctx context.Context, id int64, d task.Direction) (*task.Task, error)
	Delete(ctx context.Context, id int64) error
}

// ServerConfig holds the MCP server identity and mount path.
type ServerConfig struct {
	Name    string
	Version string
	Path    string
}

// ServerDeps holds the services the tools operate on.
type ServerDeps struct {
	Tasks TaskManager
}

// Server wraps an mcp-go server with the task tools registered.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates an MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.Path == "" {
		cfg.Path = "/mcp"
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport for mounting on a router.
func (s *Server) Handler() http.Handler {
	h := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(s.cfg.Path),
		mcpserver.WithStateLess(true),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(logger.WithOrigin(r.Context(), logger.OriginMCP)))
	})
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
