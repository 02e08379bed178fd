package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// mockTranslator implements Translator for testing.
type mockTranslator struct {
	last orchestrator.Request
	err  error
}

func (m *mockTranslator) Translate(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &orchestrator.Result{MigratedCode: "print(1)", Summary: "converted", IsDemo: false}, nil
}

// mockSearcher implements Searcher for testing.
type mockSearcher struct {
	results []retriever.Scored
}

func (m *mockSearcher) Retrieve(_ context.Context, sessionID, _, _ string) ([]retriever.Scored, error) {
	var out []retriever.Scored
	for _, r := range m.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockJobs implements JobReader for testing.
type mockJobs map[string]*store.Job

func (m mockJobs) Get(_ context.Context, id string) (*store.Job, error) {
	if j, ok := m[id]; ok {
		return j, nil
	}
	return nil, store.ErrJobNotFound
}

func scored(session, path string, start, end int, sim float64, content string) retriever.Scored {
	return retriever.Scored{
		StoredChunk: store.StoredChunk{
			SessionID: session,
			Chunk: chunker.Chunk{
				FilePath:  path,
				Kind:      chunker.KindFunction,
				Name:      "main",
				Content:   content,
				StartLine: start,
				EndLine:   end,
			},
			Metadata: chunker.Metadata{Language: "go"},
		},
		Similarity: sim,
	}
}

func newTestServer() (*Server, *mockTranslator) {
	tr := &mockTranslator{}
	searcher := &mockSearcher{results: []retriever.Scored{
		scored("s1", "main.go", 1, 10, 0.9, "func main() {}"),
		scored("s1", "util.go", 3, 3, 0.5, "func helper() {}"),
	}}
	jobs := mockJobs{"job-1": {ID: "job-1", SessionID: "s1", Status: store.JobReady, TotalChunks: 2}}
	return NewServer(tr, searcher, jobs), tr
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	// Verify tool names and required properties.
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"translate_session", translateSessionTool, "translate_session"},
		{"search_session", searchSessionTool, "search_session"},
		{"detect_language", detectLanguageTool, "detect_language"},
		{"job_status", jobStatusTool, "job_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv, tr := newTestServer()
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.translator != tr {
		t.Error("translator not set correctly")
	}
	if srv.detector == nil {
		t.Error("detector not set")
	}
}

func TestHandleTranslateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("translates", func(t *testing.T) {
		srv, tr := newTestServer()
		result, err := srv.handleTranslateSession(ctx, call(map[string]any{
			"session":         "s1",
			"source_language": "python2",
			"target_language": "python3",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		var res orchestrator.Result
		if err := json.Unmarshal([]byte(resultText(t, result)), &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.MigratedCode != "print(1)" {
			t.Errorf("migratedCode = %q", res.MigratedCode)
		}
		if tr.last.SourceLang != "python2" || tr.last.TargetLang != "python3" || tr.last.Session != "s1" {
			t.Errorf("request not passed through: %+v", tr.last)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		srv, _ := newTestServer()
		result, err := srv.handleTranslateSession(ctx, call(map[string]any{"target_language": "go"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing session")
		}
	})

	t.Run("no target", func(t *testing.T) {
		srv, tr := newTestServer()
		tr.err = orchestrator.ErrNoTargetLanguage
		result, _ := srv.handleTranslateSession(ctx, call(map[string]any{"session": "s1"}))
		if !result.IsError || !strings.Contains(resultText(t, result), "target_language") {
			t.Errorf("expected target_language error, got %v", result.Content)
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		srv, tr := newTestServer()
		tr.err = errors.New("store offline")
		result, _ := srv.handleTranslateSession(ctx, call(map[string]any{"session": "s1", "target_language": "go"}))
		if !result.IsError {
			t.Error("expected tool error")
		}
	})
}

func TestHandleSearchSession(t *testing.T) {
	srv, _ := newTestServer()
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		result, err := srv.handleSearchSession(ctx, call(map[string]any{"session": "s1", "query": "entry point"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if !strings.Contains(resultText(t, result), "Found 2 result(s)") {
			t.Errorf("unexpected output: %s", resultText(t, result))
		}
	})

	t.Run("limit", func(t *testing.T) {
		result, _ := srv.handleSearchSession(ctx, call(map[string]any{"session": "s1", "query": "x", "limit": 1}))
		if !strings.Contains(resultText(t, result), "Found 1 result(s)") {
			t.Errorf("limit not applied: %s", resultText(t, result))
		}
	})

	t.Run("missing query", func(t *testing.T) {
		result, _ := srv.handleSearchSession(ctx, call(map[string]any{"session": "s1"}))
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})

	t.Run("empty session", func(t *testing.T) {
		result, _ := srv.handleSearchSession(ctx, call(map[string]any{"session": "other", "query": "x"}))
		if result.IsError {
			t.Error("empty results should not be an error")
		}
		if !strings.Contains(resultText(t, result), "No results found") {
			t.Errorf("unexpected output: %s", resultText(t, result))
		}
	})
}

func TestHandleDetectLanguage(t *testing.T) {
	srv, _ := newTestServer()
	ctx := context.Background()

	result, err := srv.handleDetectLanguage(ctx, call(map[string]any{"filename": "main.go", "content": "package main\n"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	if !strings.Contains(resultText(t, result), `"syntax": "go"`) {
		t.Errorf("expected go syntax: %s", resultText(t, result))
	}

	result, _ = srv.handleDetectLanguage(ctx, call(map[string]any{}))
	if !result.IsError {
		t.Error("expected error without filename or content")
	}
}

func TestHandleJobStatus(t *testing.T) {
	srv, _ := newTestServer()
	ctx := context.Background()

	result, err := srv.handleJobStatus(ctx, call(map[string]any{"job_id": "job-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(t, result), `"status": "ready"`) {
		t.Errorf("unexpected output: %s", resultText(t, result))
	}

	result, _ = srv.handleJobStatus(ctx, call(map[string]any{"job_id": "missing"}))
	if !result.IsError {
		t.Error("expected error for unknown job")
	}
}

func TestFormatSearchResults(t *testing.T) {
	t.Run("empty results", func(t *testing.T) {
		result := formatSearchResults(nil)
		if result != "Found 0 result(s):\n" {
			t.Errorf("unexpected output for empty results: %q", result)
		}
	})

	t.Run("single result", func(t *testing.T) {
		result := formatSearchResults([]retriever.Scored{scored("s1", "main.go", 1, 10, 0.9523, "Main entry point")})
		for _, want := range []string{"main.go:1-10", "function", "go", "95.2%", "Main entry point"} {
			if !strings.Contains(result, want) {
				t.Errorf("result missing %q:\n%s", want, result)
			}
		}
	})
}
