package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
)

// Connection is one websocket client.
type Connection struct {
	ID     string
	UserID game.PlayerID
	Name   string

	conn    *websocket.Conn
	send    chan []byte
	gateway *Gateway
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (c *Connection) readPump() {
	defer func() {
		c.gateway.removeConnection(c)
		c.close()
	}()

	c.conn.SetReadLimit(c.gateway.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gateway.logger.Debug("websocket read failed", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil {
			c.sendError("invalid frame")
			continue
		}
		c.gateway.dispatch(c, in)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues a frame without blocking.
func (c *Connection) push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *Connection) sendError(text string) {
	data, err := json.Marshal(outbound{Type: frameError, Text: text})
	if err != nil {
		return
	}
	_ = c.push(data)
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}
