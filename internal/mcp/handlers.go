package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// handleTranslateSession translates a session and returns the result JSON.
func (s *Server) handleTranslateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}

	req := orchestrator.Request{
		Session:    session,
		User:       request.GetString("user", ""),
		Command:    request.GetString("command", ""),
		SourceLang: request.GetString("source_language", ""),
		TargetLang: request.GetString("target_language", ""),
	}
	res, err := s.translator.Translate(ctx, req)
	if errors.Is(err, orchestrator.ErrNoTargetLanguage) {
		return mcp.NewToolResultError("target_language is required when the command does not name one"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("translation failed: %v", err)), nil
	}
	return jsonResult(res)
}

// handleSearchSession performs semantic search over a session's chunks.
func (s *Server) handleSearchSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	results, err := s.searcher.Retrieve(ctx, session, "", query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The session may not be ingested yet. Run `automigrate ingest` first."), nil
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

// handleDetectLanguage reports the detected syntax and framework.
func (s *Server) handleDetectLanguage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename := request.GetString("filename", "")
	content := request.GetString("content", "")
	if filename == "" && content == "" {
		return mcp.NewToolResultError("filename or content is required"), nil
	}
	return jsonResult(s.detector.Detect(filename, content))
}

// handleJobStatus returns an ingestion job.
func (s *Server) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: job_id"), nil
	}
	job, err := s.jobs.Get(ctx, id)
	if errors.Is(err, store.ErrJobNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No job found with id %q.", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read job: %v", err)), nil
	}
	return jsonResult(job)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// formatSearchResults converts search results into a rich text format optimized
// for AI agent consumption.
func formatSearchResults(results []retriever.Scored) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", i+1))

		// Location
		if r.FilePath != "" {
			location := r.FilePath
			if r.StartLine > 0 {
				location += fmt.Sprintf(":%d", r.StartLine)
				if r.EndLine > r.StartLine {
					location += fmt.Sprintf("-%d", r.EndLine)
				}
			}
			sb.WriteString(fmt.Sprintf("File: %s\n", location))
		}

		// Metadata
		if r.Kind != "" {
			sb.WriteString(fmt.Sprintf("Kind: %s\n", r.Kind))
		}
		if r.Name != "" {
			sb.WriteString(fmt.Sprintf("Symbol: %s\n", r.Name))
		}
		if r.Metadata.Language != "" {
			sb.WriteString(fmt.Sprintf("Language: %s\n", r.Metadata.Language))
		}
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n", r.Similarity*100))

		// Content
		sb.WriteString("\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}
