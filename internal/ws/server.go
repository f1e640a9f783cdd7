package ws

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/auth"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/metrics"
	"github.com/adityavishwakarma159/CampusConnect/internal/permission"
	"github.com/adityavishwakarma159/CampusConnect/internal/service"
)

type Server struct {
	hub   *Hub
	svc   *service.ChatService
	perms *permission.Engine
	dir   directory.Directory
	jv    *auth.Validator
}

func NewServer(hub *Hub, svc *service.ChatService, perms *permission.Engine, dir directory.Directory, jv *auth.Validator) *Server {
	return &Server{hub: hub, svc: svc, perms: perms, dir: dir, jv: jv}
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler authenticates the connection from the token query parameter,
// registers it and runs the pumps until disconnect.
func (s *Server) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		subject, err := s.jv.Validate(token)
		if err != nil {
			_ = conn.Close()
			return
		}
		user, err := directory.ResolveSubject(context.Background(), s.dir, subject)
		if err != nil {
			_ = conn.Close()
			return
		}

		client := &Client{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			Role:         user.Role,
			DepartmentID: user.DepartmentID,
			Send:         make(chan []byte, 256),
		}
		s.hub.Register(client)
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		c := &connection{ws: conn, client: client, srv: s}
		go c.writePump()
		c.readPump()
	}
}

// dispatch routes one inbound frame. Errors go back to the sender's own
// connections as an error event; they never tear the socket down.
func (s *Server) dispatch(ctx context.Context, client *Client, ev inboundEvent) {
	switch ev.Type {
	case "message":
		_, err := s.svc.SendDirect(ctx, client.UserID, ev.ReceiverID, ev.Body, ev.AttachmentURL)
		s.reportError(client, ev.Type, err)
	case "group_message":
		_, err := s.svc.SendGroup(ctx, client.UserID, ev.DepartmentID, ev.ChatType, ev.Body, ev.AttachmentURL)
		s.reportError(client, ev.Type, err)
	case "mark_read":
		err := s.svc.MarkRead(ctx, client.UserID, ev.OtherUserID)
		s.reportError(client, ev.Type, err)
	case "subscribe":
		if !ev.ChatType.Group() {
			s.reportError(client, ev.Type, apperr.Validationf("chat type %q is not a group", ev.ChatType))
			return
		}
		if !s.perms.CanRead(ctx, client.UserID, ev.DepartmentID) {
			s.reportError(client, ev.Type, apperr.PermissionDeniedf("not a member of department %d", ev.DepartmentID))
			return
		}
		s.hub.Subscribe(client, Topic{DepartmentID: ev.DepartmentID, ChatType: ev.ChatType})
		s.hub.SendToUser(client.UserID, map[string]any{
			"event":         "subscribed",
			"department_id": ev.DepartmentID,
			"chat_type":     ev.ChatType,
		})
	case "unsubscribe":
		s.hub.Unsubscribe(client, Topic{DepartmentID: ev.DepartmentID, ChatType: ev.ChatType})
	default:
		s.reportError(client, ev.Type, apperr.Validationf("unknown event type %q", ev.Type))
	}
}

func (s *Server) reportError(client *Client, op string, err error) {
	if err == nil {
		return
	}
	var kind string
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, apperr.ErrPermissionDenied):
		kind = "permission_denied"
	case errors.Is(err, apperr.ErrValidation):
		kind = "validation"
	default:
		kind = "internal"
		log.Error().Err(err).Str("op", op).Int64("user", client.UserID).Msg("ws dispatch")
	}
	s.hub.SendToUser(client.UserID, map[string]any{
		"event": "error",
		"op":    op,
		"kind":  kind,
		"error": err.Error(),
	})
}

var (
	_ service.Router     = (*Hub)(nil)
	_ permission.Monitor = (*Hub)(nil)
)
