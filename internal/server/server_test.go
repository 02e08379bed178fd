package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/auto-migrate/internal/db"
	"github.com/ziadkadry99/auto-migrate/internal/detect"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// mockTranslator records the last request and returns a fixed result.
type mockTranslator struct {
	last orchestrator.Request
	err  error
}

func (m *mockTranslator) Translate(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &orchestrator.Result{MigratedCode: "const a = 1;", Summary: "ok"}, nil
}

type testEnv struct {
	srv        *Server
	jobs       *store.JobStore
	chunks     *store.SQLChunkStore
	translator *mockTranslator
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		jobs:       store.NewJobStore(database),
		chunks:     store.NewSQLChunkStore(database),
		translator: &mockTranslator{},
	}
	env.srv = New(Config{Port: 0, WatchInterval: 10 * time.Millisecond}, Deps{
		Jobs:       env.jobs,
		Chunks:     env.chunks,
		Translator: env.translator,
		Detector:   detect.New(),
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) createJob(t *testing.T) *store.Job {
	t.Helper()
	job, err := e.jobs.Create(context.Background(), "s1", "", []store.FileDescriptor{
		{RelativePath: "a.js", FetchURL: "file:///tmp/a.js"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestHealthCheck(t *testing.T) {
	env := setupTest(t)
	w := env.do("GET", "/healthz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	srv := New(Config{Port: 0, AllowAll: true}, Deps{Jobs: store.NewJobStore(database)})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
	if w.Header().Get("Access-Control-Allow-Credentials") == "true" {
		t.Error("wildcard origins must not allow credentials")
	}
}

func TestCORSDefaultsToLocalhost(t *testing.T) {
	env := setupTest(t)

	for _, tt := range []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"http://example.com", false},
	} {
		req := httptest.NewRequest("OPTIONS", "/healthz", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		w := httptest.NewRecorder()
		env.srv.Router().ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin") != ""
		if got != tt.want {
			t.Errorf("origin %s: allowed = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestCreateAndGetJob(t *testing.T) {
	env := setupTest(t)

	w := env.do("POST", "/api/jobs", `{"files": [{"relative_path": "src/a.ts", "fetch_url": "s3://bucket/a.ts"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created store.Job
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if created.Status != store.JobPending || created.TotalFiles != 1 {
		t.Errorf("unexpected job: %+v", created)
	}

	w = env.do("GET", "/api/jobs/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = env.do("GET", "/api/jobs?session="+created.SessionID, "")
	var listed []store.Job
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("expected the created job in the session list, got %+v", listed)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := setupTest(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no files", `{"session_id": "s1"}`},
		{"local file url", `{"session_id": "s1", "files": [{"relative_path": "app.js", "fetch_url": "file:///etc/passwd"}]}`},
		{"unsupported scheme", `{"session_id": "s1", "files": [{"relative_path": "app.js", "fetch_url": "ftp://host/app.js"}]}`},
		{"relative url", `{"session_id": "s1", "files": [{"relative_path": "app.js", "fetch_url": "/etc/passwd"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do("POST", "/api/jobs", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}

	jobs, err := env.jobs.ListBySession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("rejected requests must not create jobs, found %d", len(jobs))
	}
}

func TestGetJobNotFound(t *testing.T) {
	env := setupTest(t)
	if w := env.do("GET", "/api/jobs/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := env.do("DELETE", "/api/jobs/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDeleteJobCancelsAndPurges(t *testing.T) {
	env := setupTest(t)
	job := env.createJob(t)
	ctx := context.Background()

	_, err := env.chunks.Put(ctx, job.ID, []store.StoredChunk{{SessionID: "s1", Embedding: []float32{1}}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if w := env.do("DELETE", "/api/jobs/"+job.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	got, err := env.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != store.JobCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if n, _ := env.chunks.CountByJob(ctx, job.ID); n != 0 {
		t.Errorf("expected chunks purged, %d left", n)
	}
}

func TestDeleteFinishedJobRemovesIt(t *testing.T) {
	env := setupTest(t)
	job := env.createJob(t)
	ctx := context.Background()
	if ok, err := env.jobs.Claim(ctx, job.ID, time.Hour); err != nil || !ok {
		t.Fatalf("Claim: %v %v", ok, err)
	}
	if err := env.jobs.UpdateStatus(ctx, job.ID, store.JobReady, "", 3); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if w := env.do("DELETE", "/api/jobs/"+job.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, err := env.jobs.Get(ctx, job.ID); !errors.Is(err, store.ErrJobNotFound) {
		t.Errorf("expected job removed, got %v", err)
	}
}

func TestTranslate(t *testing.T) {
	env := setupTest(t)

	w := env.do("POST", "/api/translate", `{"session": "s1", "sourceLang": "ts", "targetLang": "js"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res["migratedCode"] != "const a = 1;" {
		t.Errorf("unexpected migratedCode %v", res["migratedCode"])
	}
	if _, ok := res["isDemo"]; !ok {
		t.Error("expected isDemo in the result")
	}
	if env.translator.last.TargetLang != "js" || env.translator.last.SourceLang != "ts" {
		t.Errorf("request not passed through: %+v", env.translator.last)
	}
}

func TestTranslateErrors(t *testing.T) {
	env := setupTest(t)

	if w := env.do("POST", "/api/translate", `{"targetLang": "js"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing session: expected 400, got %d", w.Code)
	}

	env.translator.err = orchestrator.ErrNoTargetLanguage
	if w := env.do("POST", "/api/translate", `{"session": "s1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("no target: expected 400, got %d", w.Code)
	}

	env.translator.err = errors.New("store offline")
	if w := env.do("POST", "/api/translate", `{"session": "s1", "targetLang": "js"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("backend failure: expected 500, got %d", w.Code)
	}
}

func TestDetect(t *testing.T) {
	env := setupTest(t)

	w := env.do("POST", "/api/detect", `{"filename": "main.go", "content": "package main\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res detect.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Syntax != "go" {
		t.Errorf("expected go, got %q", res.Syntax)
	}

	if w := env.do("POST", "/api/detect", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestWatchJob(t *testing.T) {
	env := setupTest(t)
	job := env.createJob(t)

	server := httptest.NewServer(env.srv.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/jobs/" + job.ID + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	var first store.Job
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Status != store.JobPending {
		t.Errorf("expected pending snapshot, got %s", first.Status)
	}

	if err := env.jobs.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	var last store.Job
	if err := conn.ReadJSON(&last); err != nil {
		t.Fatalf("read: %v", err)
	}
	if last.Status != store.JobCancelled {
		t.Errorf("expected cancelled snapshot, got %s", last.Status)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestWatchJobNotFound(t *testing.T) {
	env := setupTest(t)
	if w := env.do("GET", "/api/jobs/nope/watch", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
