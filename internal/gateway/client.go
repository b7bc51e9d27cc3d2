package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/helix/internal/logging"
)

// Client is one WebSocket connection. Every connection is bound to a chat
// session at handshake time; several connections may share a session.
type Client struct {
	ConnID      string
	SessionID   string
	Info        ClientInfo
	Socket      *websocket.Conn
	ConnectedAt time.Time

	writeMu sync.Mutex
	closed  bool
	log     *logging.Logger
}

// NewClient binds conn to sessionID. An empty sessionID gives the
// connection a private session named after its connection id.
func NewClient(conn *websocket.Conn, info ClientInfo, sessionID string, log *logging.Logger) *Client {
	connID := uuid.NewString()
	if sessionID == "" {
		sessionID = connID
	}
	return &Client{
		ConnID:      connID,
		SessionID:   sessionID,
		Info:        info,
		Socket:      conn,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes one frame. gorilla/websocket allows a single concurrent
// writer, so writes are serialized here.
func (c *Client) Send(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.Socket.WriteJSON(frame)
}

// SendEvent pushes an event frame.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond answers request reqID with payload.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError answers request reqID with an error.
func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next frame. Only the connection's read loop
// calls it.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	_, data, err := c.Socket.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

// Close closes the socket once; later calls are no-ops.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}

// ClientRegistry indexes live connections by connection id and by session.
type ClientRegistry struct {
	mu        sync.RWMutex
	byConn    map[string]*Client
	bySession map[string]map[string]*Client
	log       *logging.Logger
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		byConn:    make(map[string]*Client),
		bySession: make(map[string]map[string]*Client),
		log:       log,
	}
}

// Add registers c.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.byConn[c.ConnID] = c
	conns := r.bySession[c.SessionID]
	if conns == nil {
		conns = make(map[string]*Client)
		r.bySession[c.SessionID] = conns
	}
	conns[c.ConnID] = c
	r.mu.Unlock()

	r.log.Info().
		Str("connId", c.ConnID).
		Str("session", c.SessionID).
		Str("client", c.Info.ID).
		Msg("client connected")
}

// Remove drops the connection connID. Unknown ids are ignored.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	c, ok := r.byConn[connID]
	if ok {
		delete(r.byConn, connID)
		if conns := r.bySession[c.SessionID]; conns != nil {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.bySession, c.SessionID)
			}
		}
	}
	r.mu.Unlock()

	if ok {
		r.log.Info().Str("connId", connID).Str("session", c.SessionID).Msg("client disconnected")
	}
}

// Get looks a connection up by id.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byConn[connID]
	return c, ok
}

// Count is the number of open connections.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// SessionCount is the number of distinct sessions with an open connection.
func (r *ClientRegistry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}

// Broadcast pushes an event to every connection.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	r.push(targets, event, payload, seq)
}

// SendToSession pushes an event to the connections of one session.
func (r *ClientRegistry) SendToSession(sessionID, event string, payload any, seq int64) {
	r.mu.RLock()
	conns := r.bySession[sessionID]
	targets := make([]*Client, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	r.push(targets, event, payload, seq)
}

// push writes outside the registry lock so one slow socket does not block
// connects and disconnects.
func (r *ClientRegistry) push(targets []*Client, event string, payload any, seq int64) {
	for _, c := range targets {
		if err := c.SendEvent(event, payload, seq); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("event send failed")
		}
	}
}

// CloseAll closes and forgets every connection.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byConn {
		c.Close()
	}
	r.byConn = make(map[string]*Client)
	r.bySession = make(map[string]map[string]*Client)
}
