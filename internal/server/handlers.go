package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/auto-migrate/internal/acquire"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// createJobRequest is the body of POST /api/jobs.
type createJobRequest struct {
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
	Files     []store.FileDescriptor `json:"files"`
}

// detectRequest is the body of POST /api/detect.
type detectRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Files) == 0 {
		http.Error(w, "files are required", http.StatusBadRequest)
		return
	}
	for _, f := range req.Files {
		if !acquire.IsRemoteURL(f.FetchURL) {
			http.Error(w, fmt.Sprintf("fetch_url for %q must be an http, https or s3 URL", f.RelativePath), http.StatusBadRequest)
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	job, err := s.deps.Jobs.Create(r.Context(), req.SessionID, req.UserID, req.Files)
	if err != nil {
		log.Printf("server: create job: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	jobs, err := s.deps.Jobs.ListBySession(r.Context(), session)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleDeleteJob cancels a running job and purges its chunks. Finished
// jobs are removed entirely.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	err := s.deps.Jobs.Cancel(ctx, id)
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrJobTerminal):
		if err := s.deps.Jobs.Delete(ctx, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.deps.Chunks.DeleteByJob(ctx, id); err != nil {
		log.Printf("server: purge job %s: %v", id, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWatchJob streams job snapshots over a websocket until the job
// reaches a terminal state or the client goes away.
func (s *Server) handleWatchJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Jobs.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client closing.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()
	var last *store.Job
	for {
		job, err := s.deps.Jobs.Get(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				s.sendWatchError(conn, err)
			}
			return
		}
		if last == nil || changed(last, job) {
			if err := conn.WriteJSON(job); err != nil {
				log.Printf("server: websocket write: %v", err)
				return
			}
			last = job
		}
		if job.Status.Terminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func changed(a, b *store.Job) bool {
	return a.Status != b.Status || a.ProcessedFiles != b.ProcessedFiles ||
		a.TotalFiles != b.TotalFiles || a.TotalChunks != b.TotalChunks
}

func (s *Server) sendWatchError(conn *websocket.Conn, err error) {
	msg := err.Error()
	if errors.Is(err, store.ErrJobNotFound) {
		msg = "job deleted"
	}
	if werr := conn.WriteJSON(map[string]string{"error": msg}); werr != nil {
		log.Printf("server: websocket write error: %v", werr)
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Translator == nil {
		http.Error(w, "translation is not configured", http.StatusServiceUnavailable)
		return
	}
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	res, err := s.deps.Translator.Translate(r.Context(), req)
	if errors.Is(err, orchestrator.ErrNoTargetLanguage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("server: translate session %s: %v", req.Session, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Filename == "" && req.Content == "" {
		http.Error(w, "filename or content is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Detector.Detect(req.Filename, req.Content))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
