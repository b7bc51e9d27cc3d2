package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxPayload       = 4 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
)

// Server is the Helix gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	mu        sync.RWMutex
	configRaw map[string]any

	// Conversation service (nil leaves chat and sequence methods unavailable)
	service *agent.Service

	// Channel registry (optional)
	channels *channel.Registry

	// Hook manager (optional)
	hooks *hooks.Manager

	turnTimeout time.Duration
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithConfigRaw sets the raw config map for RPC access.
func WithConfigRaw(raw map[string]any) ServerOption {
	return func(s *Server) {
		s.configRaw = raw
	}
}

// WithChannels sets the channel registry for status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) {
		s.channels = ch
	}
}

// WithHooks sets the hook manager. The server emits lifecycle events on it
// and relays sequence changes to connected clients.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithService sets the conversation service behind chat and sequence methods.
func WithService(svc *agent.Service) ServerOption {
	return func(s *Server) {
		s.service = svc
	}
}

// WithTurnTimeout bounds a single chat.send turn.
func WithTurnTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.turnTimeout = d
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		configRaw:   make(map[string]any),
		turnTimeout: 5 * time.Minute,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	if s.hooks != nil {
		s.hooks.On(hooks.EventSequenceChanged, "gateway", s.onSequenceChanged)
		s.hooks.On(hooks.EventStepEdited, "gateway", s.onStepEdited)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin (non-browser clients) are always accepted.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the sorted list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Router builds the HTTP handler with every route and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware(s.log))
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware(s.cfg.Gateway.AllowedOrigins))

	s.registerHTTPRoutes(r)
	r.NotFound(handleNotFound)
	return r
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake runs the connect exchange: the server sends a challenge, the
// client answers with a connect request, and the server replies hello.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, CodeProtocol, "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			sendErrorAndClose(conn, frame.ID, CodeInvalidParams, "invalid connect params")
			return nil, fmt.Errorf("parsing connect params: %w", err)
		}
	}
	if params.MinProtocol > ProtocolVersion || (params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion) {
		sendErrorAndClose(conn, frame.ID, CodeProtocol, "unsupported protocol version")
		return nil, fmt.Errorf("protocol mismatch: client supports %d-%d", params.MinProtocol, params.MaxProtocol)
	}

	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, params.SessionID, s.log.Sub("ws"))

	hello := HelloOK{
		Protocol:  ProtocolVersion,
		SessionID: client.SessionID,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventConnectChallenge, EventSequenceUpdated, EventStepEdited},
		},
		Policy: ServerPolicy{
			MaxPayload:     maxPayload,
			TickIntervalMs: 30000,
		},
	}

	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("session", client.SessionID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Msg("client connected")

	return client, nil
}

// readLoop processes incoming frames until the client goes away.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to its handler. Requests from one client
// are handled in order.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	handler(&RequestContext{
		Client: client,
		Frame:  frame,
		Server: s,
	})
}

// onSequenceChanged relays a stored sequence change to every client.
func (s *Server) onSequenceChanged(_ context.Context, p hooks.Payload) error {
	s.clients.Broadcast(EventSequenceUpdated, map[string]any{
		"sessionId": p.SessionID(),
		"sequence":  p.Data[hooks.KeySequence],
	}, s.eventSeq.Add(1))
	return nil
}

// onStepEdited tells the clients of the edited session which step changed.
func (s *Server) onStepEdited(_ context.Context, p hooks.Payload) error {
	sessionID := p.SessionID()
	s.clients.SendToSession(sessionID, EventStepEdited, map[string]any{
		"sessionId": sessionID,
		"stepId":    p.Data[hooks.KeyStepID],
		"sequence":  p.Data[hooks.KeySequence],
	}, s.eventSeq.Add(1))
	return nil
}

// sendErrorAndClose sends an error response and closes the connection.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{
		Code:    code,
		Message: message,
	}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
