// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/orchestrator"
	submitfeedback "shopping-assistant/internal/workers/communication/submit-feedback"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r, s.chatSchema)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if _, ok := req.LastUserMessage(); !ok {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidRequestError("last message must be a non-empty user message"))
		return
	}

	turnID := uuid.New().String()
	h := w.Header()
	h.Set("Content-Type", orchestrator.ContentTypeNDJSON)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set(HeaderTurnID, turnID)
	w.WriteHeader(http.StatusOK)

	if err := s.turns.HandleTurn(r.Context(), turnID, &req, orchestrator.NewStreamWriter(w)); err != nil {
		s.logger.Debug("turn ended with error", map[string]interface{}{
			"turnId": turnID,
			"error":  err.Error(),
		})
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r, s.feedbackSchema)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	var input submitfeedback.Input
	if err := json.Unmarshal(body, &input); err != nil {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	out, err := s.feedback.Execute(r.Context(), &input)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.ReadyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[c.Name] = err.Error()
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"check": c.Name,
				"error": err.Error(),
			})
			continue
		}
		checks[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readBody reads at most MaxBodyBytes and validates the document against
// schema. Every failure is an INVALID_REQUEST.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema *validation.Schema) ([]byte, error) {
	if s.config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewInvalidRequestError("request body too large")
		}
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}

	result := schema.ValidateBytes(body)
	if !result.Valid {
		return nil, apperrors.NewInvalidRequestError(validation.FormatErrors(result.Errors)).
			WithMetadata("errors", result.Errors)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
