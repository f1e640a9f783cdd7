package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

const (
	readLimit    = 32 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// inboundEvent is a client frame. Type selects the operation; the other
// fields mirror the REST payloads.
type inboundEvent struct {
	Type          string          `json:"type"`
	ReceiverID    int64           `json:"receiver_id,omitempty"`
	OtherUserID   int64           `json:"other_user_id,omitempty"`
	DepartmentID  int64           `json:"department_id,omitempty"`
	ChatType      models.ChatType `json:"chat_type,omitempty"`
	Body          string          `json:"body,omitempty"`
	AttachmentURL string          `json:"attachment_url,omitempty"`
}

type connection struct {
	ws     *websocket.Conn
	client *Client
	srv    *Server
}

func (c *connection) readPump() {
	defer func() {
		c.srv.hub.Unregister(c.client)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// malformed frame, keep the connection
			continue
		}
		c.srv.dispatch(context.Background(), c.client, ev)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.client.Send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("conn", c.client.ID).Msg("ws write")
				return
			}
		case <-ticker.C:
			c.srv.hub.RefreshMonitors(c.client)
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
