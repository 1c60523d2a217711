package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"chatvault/internal/util"
	"chatvault/pkg/progress"
	"chatvault/services/harvester/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	InternalToken string
}

// Server exposes HTTP endpoints for the harvester service.
type Server struct {
	app           *app.App
	internalToken string
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:           cfg.App,
		internalToken: strings.TrimSpace(cfg.InternalToken),
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("harvester", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/harvester/downloads", s.withInternal(s.handleDownloads))
	s.mux.Handle("/harvester/dumps", s.withInternal(s.handleDumps))
	s.mux.Handle("/harvester/broadcasts", s.withInternal(s.handleBroadcasts))
	s.mux.Handle("/harvester/summaries", s.withInternal(s.handleSummaries))
	s.mux.Handle("/harvester/tasks/", s.withInternal(s.handleTaskByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
		if token == "" || token != s.internalToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.DownloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.sessionExists(w, req.SessionID) {
		return
	}
	taskID, err := s.app.StartDownload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (s *Server) handleDumps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.DumpRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.sessionExists(w, req.SessionID) {
		return
	}
	taskID, err := s.app.StartDump(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (s *Server) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.BroadcastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.sessionExists(w, req.SessionID) {
		return
	}
	taskID, err := s.app.StartBroadcast(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.SummaryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.sessionExists(w, req.SessionID) {
		return
	}
	log, err := s.app.Summarize(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// /harvester/tasks/{id}
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/harvester/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		st, ok, err := s.app.TaskStatus(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, taskResponse{TaskID: id, State: st.State, Info: taskInfo(st)})
	case http.MethodDelete:
		s.app.CancelTask(id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) sessionExists(w http.ResponseWriter, sessionID int64) bool {
	_, ok, err := s.app.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return false
	}
	return true
}

type taskResponse struct {
	TaskID string `json:"taskId"`
	State  string `json:"state"`
	Info   any    `json:"info"`
}

// taskInfo picks the pollable payload: the latest progress tuple while the
// task runs, the terminal result or error once it is done.
func taskInfo(st progress.Status) any {
	switch st.State {
	case progress.StateRunning:
		return st.Progress
	case progress.StateCompleted:
		return st.Result
	case progress.StateFailed:
		return map[string]any{"error": st.Error, "result": st.Result}
	default:
		return nil
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeBody(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
