package gateway

import (
	"context"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied.
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.allowedOrigins",
	"agent.name",
	"agent.guidedFlow",
	"agent.fastPath",
	"logging",
	"session.sequenceScope",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

func (s *Server) registerHTTPRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthDetail)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/history", s.handleHistory)
			r.Get("/sequence", s.handleSequence)
		})
	})
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
	s.Handle("channels.status", s.rpcChannelsStatus)
	s.Handle("chat.send", s.withService(s.rpcChatSend))
	s.Handle("chat.history", s.withService(s.rpcChatHistory))
	s.Handle("sequence.get", s.withService(s.rpcSequenceGet))
	s.Handle("sequence.save", s.withService(s.rpcSequenceSave))
	s.Handle("sequence.editStep", s.withService(s.rpcSequenceEditStep))
}

func (s *Server) withService(h RequestHandler) RequestHandler {
	return func(rc *RequestContext) {
		if s.service == nil {
			rc.RespondError(CodeUnavailable, "assistant not configured")
			return
		}
		h(rc)
	}
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(s.health())
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "access denied for config path: "+p.Key)
		return
	}
	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.RLock()
	val, ok := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError(CodeNotFound, "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "cannot modify config path: "+p.Key)
		return
	}
	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.Lock()
	config.SetValueAtPath(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	if s.channels != nil {
		rc.Respond(map[string]any{"channels": s.channels.Status()})
		return
	}
	rc.Respond(map[string]any{"channels": []any{}})
}

type chatSendParams struct {
	Message   string                `json:"message"`
	SessionID string                `json:"sessionId,omitempty"`
	Sequence  []domain.SequenceStep `json:"sequence,omitempty"`
}

// rpcChatSend runs one conversational turn. Turn failures are part of the
// result, so the frame itself only fails on bad params.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	defer cancel()

	rc.Respond(s.service.HandleMessage(ctx, rc.SessionID(p.SessionID), p.Message, p.Sequence))
}

type sessionParams struct {
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) rpcChatHistory(rc *RequestContext) {
	var p sessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	id := rc.SessionID(p.SessionID)
	msgs, err := s.service.History(context.Background(), id)
	if err != nil {
		rc.Fail(err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	rc.Respond(HistoryResponse{SessionID: id, Messages: msgs})
}

func (s *Server) rpcSequenceGet(rc *RequestContext) {
	var p sessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	seq, err := s.service.Sequence(context.Background(), rc.SessionID(p.SessionID))
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(seq)
}

type sequenceSaveParams struct {
	SessionID string                `json:"sessionId,omitempty"`
	Steps     []domain.SequenceStep `json:"steps"`
}

func (s *Server) rpcSequenceSave(rc *RequestContext) {
	var p sequenceSaveParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if len(p.Steps) == 0 {
		rc.RespondError(CodeInvalidParams, "steps are required")
		return
	}
	seq, err := s.service.SaveSequence(context.Background(), rc.SessionID(p.SessionID), p.Steps)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(seq)
}

type editStepParams struct {
	SessionID string `json:"sessionId,omitempty"`
	StepID    string `json:"stepId"`
	Content   string `json:"content"`
}

func (s *Server) rpcSequenceEditStep(rc *RequestContext) {
	var p editStepParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.StepID == "" || strings.TrimSpace(p.Content) == "" {
		rc.RespondError(CodeInvalidParams, "stepId and content are required")
		return
	}
	seq, err := s.service.EditStep(context.Background(), rc.SessionID(p.SessionID), p.StepID, strings.TrimSpace(p.Content))
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(seq)
}
