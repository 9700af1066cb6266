package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errAlreadyStarted = errors.New("voice session already started")

// Config holds connection settings for the voice-agent platform.
type Config struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// wireMessage is the JSON envelope used in both directions.
type wireMessage struct {
	Type               string              `json:"type"`
	AssistantID        string              `json:"assistantId,omitempty"`
	AssistantOverrides *assistantOverrides `json:"assistantOverrides,omitempty"`
	Role               string              `json:"role,omitempty"`
	TranscriptType     string              `json:"transcriptType,omitempty"`
	Transcript         string              `json:"transcript,omitempty"`
	Status             string              `json:"status,omitempty"`
	Error              string              `json:"error,omitempty"`
}

type assistantOverrides struct {
	VariableValues map[string]any `json:"variableValues,omitempty"`
}

// Client is one call's connection to the voice-agent platform.
// A Client is single-use: Start may succeed at most once.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	started   bool
	stopping  bool
	ended     bool
	done      chan struct{}
	writeMu   sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewClient creates a new voice client.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		logger:    logger,
		done:      make(chan struct{}),
		listeners: make(map[uint64]Listener),
	}
}

// On registers a listener and returns the function that removes it.
// The returned function is safe to call more than once.
func (c *Client) On(l Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Start dials the platform and asks it to run assistantID with the given
// template variables. Events are delivered to listeners afterwards.
func (c *Client) Start(ctx context.Context, assistantID string, variables map[string]any) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("voice platform connection failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	start := wireMessage{
		Type:        "start",
		AssistantID: assistantID,
		AssistantOverrides: &assistantOverrides{
			VariableValues: variables,
		},
	}
	if err := c.writeJSON(start); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Debug("failed to close voice connection", "error", closeErr)
		}
		return fmt.Errorf("send start message: %w", err)
	}

	go c.readMessages(conn)

	c.logger.Info("Voice session started", "assistant_id", assistantID)
	return nil
}

// Stop asks the platform to end the call and closes the connection.
// It is a no-op when the session never started or is already stopping.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.conn == nil || c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	conn := c.conn
	close(c.done)
	c.mu.Unlock()

	if err := c.writeJSON(wireMessage{Type: "stop"}); err != nil {
		c.logger.Debug("failed to send stop message", "error", err)
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call stopped")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		c.logger.Debug("failed to send close frame", "error", err)
	}
	c.writeMu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close voice connection: %w", err)
	}
	c.logger.Info("Voice session stopped")
	return nil
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) readMessages(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			// The socket is unusable after a read error.
			if closeErr := conn.Close(); closeErr != nil {
				c.logger.Debug("failed to close voice connection", "error", closeErr)
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed voice message", "error", err)
			continue
		}

		ev, ok := c.decode(msg)
		if !ok {
			continue
		}
		c.emit(ev)
	}
}

func (c *Client) decode(msg wireMessage) (Event, bool) {
	switch msg.Type {
	case "call-start":
		return CallStart{}, true
	case "call-end":
		c.mu.Lock()
		c.ended = true
		c.mu.Unlock()
		return CallEnd{}, true
	case MessageTypeTranscript:
		return Message{
			Type:           msg.Type,
			Role:           msg.Role,
			TranscriptType: msg.TranscriptType,
			Transcript:     msg.Transcript,
		}, true
	case "speech-update":
		switch msg.Status {
		case "started":
			return SpeechStart{}, true
		case "stopped":
			return SpeechEnd{}, true
		}
		return nil, false
	case "error":
		return Error{Message: msg.Error}, true
	default:
		c.logger.Debug("Ignoring voice message", "type", msg.Type)
		return nil, false
	}
}

func (c *Client) handleReadError(err error) {
	select {
	case <-c.done:
		// Stop closed the connection.
		return
	default:
	}

	c.mu.Lock()
	ended := c.ended
	c.ended = true
	c.mu.Unlock()
	if ended {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.emit(CallEnd{})
		return
	}
	c.logger.Warn("Voice connection lost", "error", err)
	c.emit(Error{Message: MeetingEndedMarker + ": " + err.Error()})
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	// Registration order is the id order.
	slices.Sort(ids)
	for _, id := range ids {
		c.mu.Lock()
		l, ok := c.listeners[id]
		c.mu.Unlock()
		if ok {
			l(ev)
		}
	}
}
