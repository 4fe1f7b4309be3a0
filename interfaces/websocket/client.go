package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/interaction"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 64
)

var errSlowClient = errors.New("client is not reading fast enough")

// inbound is a client message.
//
//	{"type":"explore","conceptId":"abc","depth":2}
//	{"type":"resize","width":800,"height":600}
//	{"type":"pointer","event":{"kind":"click","nodeId":"def"}}
//	{"type":"pin","nodeId":"def","pinned":true}
type inbound struct {
	Type      string             `json:"type"`
	ConceptID string             `json:"conceptId,omitempty"`
	Depth     int                `json:"depth,omitempty"`
	Width     float64            `json:"width,omitempty"`
	Height    float64            `json:"height,omitempty"`
	Event     *interaction.Event `json:"event,omitempty"`
	NodeID    string             `json:"nodeId,omitempty"`
	Pinned    bool               `json:"pinned,omitempty"`
}

// client pumps messages between one connection and its session.
type client struct {
	conn    *websocket.Conn
	session *explorer.Session
	send    chan []byte
	logger  *zap.Logger
}

// Send implements explorer.Sink. Frames are dropped when the client falls
// behind; status and error messages are not.
func (c *client) Send(msg explorer.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	select {
	case c.send <- b:
		return nil
	default:
	}
	if msg.Type == explorer.MessageFrame {
		c.logger.Debug("Dropping frame for slow client")
		return nil
	}
	select {
	case c.send <- b:
		return nil
	case <-time.After(writeWait):
		return errSlowClient
	}
}

// reply queues an error message from the read side.
func (c *client) reply(code string, err error) {
	b, _ := json.Marshal(explorer.Message{
		Type:  explorer.MessageError,
		Error: &explorer.ErrorInfo{Code: code, Message: err.Error()},
	})
	select {
	case c.send <- b:
	default:
	}
}

// readPump decodes client messages and hands them to the session.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Binary messages not supported")
			continue
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil {
			c.reply("BAD_MESSAGE", fmt.Errorf("malformed message: %w", err))
			continue
		}
		if err := c.handle(in); err != nil {
			if errors.Is(err, explorer.ErrClosed) {
				return
			}
			c.reply("BAD_MESSAGE", err)
		}
	}
}

func (c *client) handle(in inbound) error {
	switch in.Type {
	case "explore":
		return c.session.Explore(in.ConceptID, in.Depth)
	case "resize":
		return c.session.Resize(interaction.Surface{Width: in.Width, Height: in.Height})
	case "pointer":
		if in.Event == nil {
			return errors.New("pointer message without event")
		}
		return c.session.Dispatch(*in.Event)
	case "pin":
		return c.session.SetPinned(in.NodeID, in.Pinned)
	default:
		return fmt.Errorf("unknown message type %q", in.Type)
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
