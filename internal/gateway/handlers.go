package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/domain"
)

// HealthResponse is returned by health endpoints. The bare /health check
// only populates Status.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version,omitempty"`
	Clients  int                    `json:"clients,omitempty"`
	Sessions int                    `json:"sessions,omitempty"`
	UptimeMs int64                  `json:"uptimeMs,omitempty"`
	Actions  int                    `json:"actions,omitempty"`
	Channels []domain.ChannelStatus `json:"channels,omitempty"`
}

// HistoryResponse is the transcript of one session.
type HistoryResponse struct {
	SessionID string               `json:"sessionId"`
	Messages  []domain.ChatMessage `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleHealthDetail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) health() HealthResponse {
	h := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Sessions: s.clients.SessionCount(),
	}
	if !s.startedAt.IsZero() {
		h.UptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	if s.service != nil {
		h.Actions = len(s.service.Actions())
	} else {
		h.Status = "degraded"
	}
	if s.channels != nil {
		h.Channels = s.channels.Status()
	}
	return h
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}
	id := chi.URLParam(r, "id")
	msgs, err := s.service.History(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("session", id).Msg("loading history")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Messages: msgs})
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}
	id := chi.URLParam(r, "id")
	seq, err := s.service.Sequence(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("session", id).Msg("loading sequence")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Fail reports err, separating store failures from bad input.
func (rc *RequestContext) Fail(err error) {
	var pe *agent.PersistenceError
	if errors.As(err, &pe) {
		rc.Server.log.Error().Err(err).Str("method", rc.Frame.Method).Msg("request failed")
		rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: CodeInternal, Message: err.Error(), Retryable: true})
		return
	}
	rc.RespondError(CodeInvalidParams, err.Error())
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// SessionID returns the requested session, defaulting to the one bound
// at connect time.
func (rc *RequestContext) SessionID(requested string) string {
	if requested != "" {
		return requested
	}
	return rc.Client.SessionID
}
