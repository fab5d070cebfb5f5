package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/index"
	"github.com/JakeFAU/site-ingestor/internal/pipeline"
	"github.com/JakeFAU/site-ingestor/internal/queue"
)

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	DocID     string `json:"doc_id"`
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	SessionID string   `json:"session_id"`
	DocID     string   `json:"doc_id"`
	Question  string   `json:"question"`
	History   []string `json:"history"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seed := strings.TrimSpace(req.URL)
	if _, _, err := crawler.ParseSeed(seed); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := pipeline.Job{SeedURL: seed}
	var err error
	if job.DocID, err = s.idGen.NewID(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate ids")
		return
	}
	if job.SessionID, err = s.idGen.NewID(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate ids")
		return
	}

	if err := s.jobs.Enqueue(r.Context(), job); err != nil {
		s.logger.Warn("enqueue failed", zap.String("url", seed), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, fmt.Sprintf("Failed to start task: %v", err))
		return
	}

	s.logger.Info("ingestion queued",
		zap.String("url", seed),
		zap.String("doc_id", job.DocID),
		zap.String("session_id", job.SessionID),
	)
	s.writeJSON(w, http.StatusAccepted, scrapeResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Processing started for %s.", seed),
		DocID:     job.DocID,
		SessionID: job.SessionID,
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" || req.DocID == "" || strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "session_id, doc_id and question are required")
		return
	}

	answer, err := s.asker.Query(r.Context(), req.DocID, req.Question, req.History)
	if err != nil {
		if errors.Is(err, index.ErrNotPrepared) {
			s.writeError(w, http.StatusConflict, index.ErrNotPrepared.Error())
			return
		}
		s.logger.Error("query failed", zap.String("doc_id", req.DocID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	conversation := make([]string, 0, len(req.History)+2)
	conversation = append(conversation, req.History...)
	conversation = append(conversation, req.Question, answer)
	if err := s.sessions.SetConversation(r.Context(), req.SessionID, conversation); err != nil {
		if errors.Is(err, crawler.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("save conversation failed", zap.String("session_id", req.SessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []crawler.Session{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, crawler.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch session")
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}
