package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/pkg/message"
)

const (
	requestTimeout = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// ClientMetrics counts websocket connections.
type ClientMetrics interface {
	ClientConnected()
	ClientDisconnected()
}

// Hub fans channel notifications out to websocket clients and executes
// their requests against the relay manager.
type Hub struct {
	relays  Relays
	cfg     WebSocketConfig
	logger  *slog.Logger
	metrics ClientMetrics
	now     func() time.Time

	mu      sync.RWMutex
	clients map[string]*wsClient
}

var _ channel.Observer = (*Hub)(nil)

// NewHub creates a hub. metrics may be nil.
func NewHub(relays Relays, cfg WebSocketConfig, logger *slog.Logger, metrics ClientMetrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		relays:  relays,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		clients: make(map[string]*wsClient),
	}
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
	all      bool
}

func (c *wsClient) subscribed(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		return true
	}
	_, ok := c.channels[target]
	return ok
}

func (c *wsClient) subscribe(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if target == AllChannels {
		c.all = true
		return
	}
	c.channels[target] = struct{}{}
}

func (c *wsClient) unsubscribe(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, target)
}

// enqueue queues env for the writer. It reports false when the client is
// gone or its queue is full.
func (c *wsClient) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *wsClient) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify implements channel.Observer. A client that cannot keep up is
// disconnected rather than blocking the publisher.
func (h *Hub) Notify(n channel.Notification) {
	env, err := eventFor(n, h.now())
	if err != nil {
		h.logger.Error("encode notification failed", "kind", n.Kind.String(), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		if c.subscribed(n.Channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(env) {
			h.logger.Warn("websocket client too slow, disconnecting", "client", c.id)
			c.close(websocket.StatusPolicyViolation, "send queue full")
		}
		if n.Kind == channel.NotifyClosed {
			c.unsubscribe(n.Channel)
		}
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Clients() >= h.cfg.MaxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	c := &wsClient{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan Envelope, h.cfg.SendBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writeLoop(ctx, c)

	h.logger.Info("websocket client connected", "client", c.id, "remote_addr", r.RemoteAddr)
	h.readLoop(ctx, c)
	c.close(websocket.StatusNormalClosure, "")
	h.logger.Info("websocket client disconnected", "client", c.id)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn("invalid message from websocket client", "client", c.id, "error", err)
			c.enqueue(h.errorEnvelope("", "", "invalid message format"))
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		reply := h.handleRequest(reqCtx, c, env)
		cancel()
		if !c.enqueue(reply) {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *wsClient) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env := <-c.send:
			if err := h.write(ctx, c, env); err != nil {
				h.logger.Debug("websocket write failed", "client", c.id, "error", err)
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, c *wsClient, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// handleRequest executes one client request and returns the reply.
func (h *Hub) handleRequest(ctx context.Context, c *wsClient, env Envelope) Envelope {
	if env.Type != MsgSubscribe && env.Channel == "" {
		return h.errorEnvelope(env.ID, "", "missing channel")
	}

	switch env.Type {
	case MsgSubscribe:
		target := env.Channel
		if target == "" {
			target = AllChannels
		}
		c.subscribe(target)
		return h.resultEnvelope(env.ID, target, nil)

	case MsgEnsureChannel:
		r, err := h.relays.EnsureChannel(ctx, env.Channel)
		if err != nil {
			return h.errorEnvelope(env.ID, env.Channel, err.Error())
		}
		c.subscribe(env.Channel)
		return h.resultEnvelope(env.ID, env.Channel, viewChannel(r))

	case MsgSendMessage:
		var req SendMessageRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, "invalid send_message payload")
		}
		r, ok := h.relays.Channel(env.Channel)
		if !ok {
			return h.errorEnvelope(env.ID, env.Channel, channel.ErrNoChannel.Error())
		}
		token, err := r.Channel().SendMessage(ctx, req.parts())
		if err != nil {
			return h.errorEnvelope(env.ID, env.Channel, err.Error())
		}
		return h.resultEnvelope(env.ID, env.Channel, SendMessageResult{Token: token})

	case MsgAcknowledge:
		var req AcknowledgeRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, "invalid acknowledge payload")
		}
		r, ok := h.relays.Channel(env.Channel)
		if !ok {
			return h.errorEnvelope(env.ID, env.Channel, channel.ErrNoChannel.Error())
		}
		if err := r.Channel().AcknowledgeMessage(ctx, req.Tokens...); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, err.Error())
		}
		return h.resultEnvelope(env.ID, env.Channel, nil)

	case MsgSetChatState:
		var req ChatStateRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, "invalid set_chat_state payload")
		}
		state, ok := message.ParseChatState(req.State)
		if !ok {
			return h.errorEnvelope(env.ID, env.Channel, fmt.Sprintf("unknown chat state %q", req.State))
		}
		r, ok := h.relays.Channel(env.Channel)
		if !ok {
			return h.errorEnvelope(env.ID, env.Channel, channel.ErrNoChannel.Error())
		}
		if err := r.Channel().SetChatState(ctx, state); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, err.Error())
		}
		return h.resultEnvelope(env.ID, env.Channel, nil)

	case MsgCloseChannel:
		if err := h.relays.CloseChannel(env.Channel); err != nil {
			return h.errorEnvelope(env.ID, env.Channel, err.Error())
		}
		return h.resultEnvelope(env.ID, env.Channel, nil)

	default:
		return h.errorEnvelope(env.ID, env.Channel, fmt.Sprintf("unknown request type %q", env.Type))
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(raw, v)
}

func (h *Hub) resultEnvelope(id, target string, payload any) Envelope {
	env := Envelope{Type: MsgResult, ID: id, Channel: target, Timestamp: h.now()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return h.errorEnvelope(id, target, "internal error")
		}
		env.Payload = raw
	}
	return env
}

func (h *Hub) errorEnvelope(id, target, msg string) Envelope {
	raw, _ := json.Marshal(ErrorPayload{Message: msg})
	return Envelope{Type: MsgError, ID: id, Channel: target, Payload: raw, Timestamp: h.now()}
}
