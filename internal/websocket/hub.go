package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/audio"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// How long to wait for a kiosk to acknowledge a clip before advancing.
	playbackAckTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Kiosk runs on the same host; the JWT on the upgrade request gates access.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ConversationGateway is the hub's view of the conversation controller
type ConversationGateway interface {
	MicTap()
	MicStop()
	UserText(text string)
	AudioUnlock()
	SetAudioEnabled(enabled bool)
	Reset()
	WriteAudio(data []byte)
	Snapshot() (entities.TurnState, []entities.Message)
}

// Hub maintains the set of active kiosk clients. It doubles as the
// controller's view (transcript, toasts) and as the playback sink: Play
// broadcasts a clip and blocks until a kiosk acknowledges it.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	gateway   ConversationGateway
	validator *MessageValidator

	ackMu sync.Mutex
	acks  map[string]chan error

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		validator:  NewMessageValidator(),
		acks:       make(map[string]chan error),
		logger:     logger,
	}
}

// Bind attaches the conversation controller. Must happen before Run.
func (h *Hub) Bind(gateway ConversationGateway) {
	h.gateway = gateway
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Kiosk registered", zap.String("sessionID", client.sessionID))
			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Kiosk unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	if h.gateway == nil {
		return
	}
	state, messages := h.gateway.Snapshot()
	payload, err := json.Marshal(&TranscriptMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTranscript, Timestamp: time.Now().Format(time.RFC3339)},
		State:       state,
		Messages:    messages,
	})
	if err != nil {
		return
	}
	client.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// broadcast sends a payload to every connected kiosk
func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TranscriptChanged implements the controller's view
func (h *Hub) TranscriptChanged(state entities.TurnState, messages []entities.Message) {
	payload, err := json.Marshal(&TranscriptMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTranscript, Timestamp: time.Now().Format(time.RFC3339)},
		State:       state,
		Messages:    messages,
	})
	if err != nil {
		h.logger.Error("Failed to marshal transcript", zap.Error(err))
		return
	}
	h.broadcast(payload)
}

// Toast implements the controller's view
func (h *Hub) Toast(text string) {
	payload, err := json.Marshal(&ToastMessage{
		BaseMessage: BaseMessage{Type: MessageTypeToast, Timestamp: time.Now().Format(time.RFC3339)},
		Text:        text,
	})
	if err != nil {
		return
	}
	h.broadcast(payload)
}

// Play implements the playback sink: it broadcasts the clip and blocks until
// a kiosk reports the clip ended or failed. With no kiosk connected the clip
// is skipped so the turn still completes.
func (h *Hub) Play(ctx context.Context, item audio.Item) error {
	if h.clientCount() == 0 {
		h.logger.Warn("No kiosk connected, skipping clip", zap.String("item_id", item.ID))
		return nil
	}

	ack := make(chan error, 1)
	h.ackMu.Lock()
	h.acks[item.ID] = ack
	h.ackMu.Unlock()
	defer func() {
		h.ackMu.Lock()
		delete(h.acks, item.ID)
		h.ackMu.Unlock()
	}()

	payload, err := json.Marshal(&PlayMessage{
		BaseMessage: BaseMessage{Type: MessageTypePlay, Timestamp: time.Now().Format(time.RFC3339)},
		ItemID:      item.ID,
		URL:         item.URL,
		Text:        item.Text,
		ImageURL:    item.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal play message: %w", err)
	}
	h.broadcast(payload)

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playbackAckTimeout):
		return fmt.Errorf("playback ack timeout for item %s", item.ID)
	}
}

func (h *Hub) resolveAck(itemID string, err error) {
	h.ackMu.Lock()
	ack, ok := h.acks[itemID]
	h.ackMu.Unlock()
	if ok {
		select {
		case ack <- err:
		default:
		}
	}
}

// WriteData is one frame queued for the peer
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between one kiosk connection and the hub
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Kiosk session this connection belongs to
	sessionID string

	logger *zap.Logger

	sendOnce sync.Once
}

// trySend queues a frame, dropping the client when its buffer is full
func (c *Client) trySend(data WriteData) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full, dropping connection",
			zap.String("sessionID", c.sessionID))
		c.sendOnce.Do(func() { c.conn.Close() })
	}
}

// HandleWebSocketWithAuth handles websocket requests with a validated session
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		sessionID: sessionID,
		logger:    logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the controller
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.hub.gateway.WriteAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage routes one validated control message to the controller
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		if payload, merr := json.Marshal(CreateErrorMessage("invalid_message", err.Error())); merr == nil {
			c.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
		}
		return
	}

	switch msg := parsed.(type) {
	case *BaseMessage:
		switch msg.Type {
		case MessageTypeMicTap:
			c.hub.gateway.AudioUnlock()
			c.hub.gateway.MicTap()
		case MessageTypeMicStop:
			c.hub.gateway.MicStop()
		case MessageTypeAudioUnlock:
			c.hub.gateway.AudioUnlock()
		case MessageTypeReset:
			c.hub.gateway.Reset()
		case MessageTypePing:
			if payload, err := json.Marshal(CreatePongMessage()); err == nil {
				c.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
			}
		}

	case *UserTextMessage:
		c.hub.gateway.AudioUnlock()
		c.hub.gateway.UserText(msg.Text)

	case *PlaybackEndedMessage:
		c.hub.resolveAck(msg.ItemID, nil)

	case *PlaybackErrorMessage:
		c.hub.resolveAck(msg.ItemID, fmt.Errorf("kiosk playback failed: %s", msg.Reason))

	case *SetAudioMessage:
		c.hub.gateway.SetAudioEnabled(msg.Enabled)
	}
}
