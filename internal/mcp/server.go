package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/auto-migrate/internal/detect"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Translator runs a session translation.
type Translator interface {
	Translate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Searcher ranks a session's chunks against a query.
type Searcher interface {
	Retrieve(ctx context.Context, sessionID, userID, query string) ([]retriever.Scored, error)
}

// JobReader looks up ingestion jobs.
type JobReader interface {
	Get(ctx context.Context, id string) (*store.Job, error)
}

// Server wraps an MCP server that exposes translation tools.
type Server struct {
	translator Translator
	searcher   Searcher
	jobs       JobReader
	detector   *detect.Detector
	mcp        *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(translator Translator, searcher Searcher, jobs JobReader) *Server {
	s := &Server{
		translator: translator,
		searcher:   searcher,
		jobs:       jobs,
		detector:   detect.New(),
	}

	s.mcp = server.NewMCPServer(
		"automigrate",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(translateSessionTool, s.handleTranslateSession)
	s.mcp.AddTool(searchSessionTool, s.handleSearchSession)
	s.mcp.AddTool(detectLanguageTool, s.handleDetectLanguage)
	s.mcp.AddTool(jobStatusTool, s.handleJobStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
