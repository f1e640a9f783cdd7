// Package service is the chat facade: it orchestrates the store, the
// conversation index, the permission engine and the delivery router for
// every public operation.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/metrics"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
	"github.com/adityavishwakarma159/CampusConnect/internal/permission"
	"github.com/adityavishwakarma159/CampusConnect/internal/store"
)

// Router fans persisted messages out to live connections. Implemented by
// the ws hub; delivery failures never fail the request.
type Router interface {
	SendToUser(userID int64, payload any)
	BroadcastTopic(departmentID int64, chatType models.ChatType, payload any)
}

// Publisher streams message.sent events (Kafka) for downstream
// consumers such as the notification service. Best effort.
type Publisher interface {
	PublishMessageSent(ctx context.Context, msg *models.ChatMessage) error
}

// MessageEvent is the frame pushed to live clients.
type MessageEvent struct {
	Event   string              `json:"event"`
	Message *models.ChatMessage `json:"message"`
}

type ChatService struct {
	messages store.MessageStore
	index    store.ConversationIndex
	dir      directory.Directory
	perms    *permission.Engine
	router   Router
	pub      Publisher
}

func NewChatService(
	messages store.MessageStore,
	index store.ConversationIndex,
	dir directory.Directory,
	perms *permission.Engine,
	router Router,
	pub Publisher,
) *ChatService {
	return &ChatService{
		messages: messages,
		index:    index,
		dir:      dir,
		perms:    perms,
		router:   router,
		pub:      pub,
	}
}

// SendDirect persists a one-to-one message, updates both sides of the
// conversation index, then delivers to the receiver's connections and
// echoes to the sender's own. The durable write commits before any
// fan-out is attempted.
func (s *ChatService) SendDirect(ctx context.Context, senderID, receiverID int64, body, attachmentURL string) (*models.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Validationf("message body is empty")
	}
	if senderID == receiverID {
		return nil, apperr.Validationf("cannot message yourself")
	}
	sender, err := s.dir.UserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.Append(ctx, store.MessageDraft{
		SenderID:      senderID,
		ReceiverID:    &receiverID,
		ChatType:      models.ChatTypeOneToOne,
		DepartmentID:  sender.DepartmentID,
		Body:          body,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		return nil, err
	}

	// Message and index commit together or not at all: the pair upsert
	// is atomic inside the index, and an index failure discards the
	// freshly appended message so a retry cannot duplicate it.
	if err := s.index.TouchPair(ctx, senderID, receiverID, models.ChatTypeOneToOne, msg.ID); err != nil {
		if derr := s.messages.Discard(ctx, msg.ID); derr != nil {
			log.Error().Err(derr).Str("message", msg.ID).Msg("discard after failed index update")
		}
		return nil, fmt.Errorf("index conversation: %w", err)
	}

	event := MessageEvent{Event: "message_created", Message: msg}
	s.router.SendToUser(receiverID, event)
	s.router.SendToUser(senderID, event)

	s.publish(ctx, msg)
	metrics.MessagesSent.WithLabelValues(string(models.ChatTypeOneToOne)).Inc()
	return msg, nil
}

// SendGroup persists a department group message and broadcasts it to the
// topic's subscribers. Group sends never touch the conversation index.
func (s *ChatService) SendGroup(ctx context.Context, senderID, departmentID int64, chatType models.ChatType, body, attachmentURL string) (*models.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Validationf("message body is empty")
	}
	if !chatType.Group() {
		return nil, apperr.Validationf("chat type %q is not a group", chatType)
	}
	if !s.perms.CanPost(ctx, senderID, chatType, departmentID) {
		return nil, apperr.PermissionDeniedf("posting in this group is not allowed")
	}

	msg, err := s.messages.Append(ctx, store.MessageDraft{
		SenderID:      senderID,
		ChatType:      chatType,
		DepartmentID:  departmentID,
		Body:          body,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		return nil, err
	}

	s.router.BroadcastTopic(departmentID, chatType, MessageEvent{Event: "message_created", Message: msg})
	s.publish(ctx, msg)
	metrics.MessagesSent.WithLabelValues(string(chatType)).Inc()
	return msg, nil
}

// History returns the direct conversation between two users, oldest
// first. Symmetric in its arguments; cross-department pairs are denied
// the same way sends are.
func (s *ChatService) History(ctx context.Context, userID, otherID int64) ([]*models.ChatMessage, error) {
	user, err := s.dir.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	other, err := s.dir.UserByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if user.DepartmentID != other.DepartmentID {
		return nil, apperr.PermissionDeniedf("cannot view messages across departments")
	}
	return s.messages.History(ctx, userID, otherID)
}

func (s *ChatService) GroupHistory(ctx context.Context, userID, departmentID int64, chatType models.ChatType) ([]*models.ChatMessage, error) {
	if !chatType.Group() {
		return nil, apperr.Validationf("chat type %q is not a group", chatType)
	}
	if !s.perms.CanRead(ctx, userID, departmentID) {
		return nil, apperr.PermissionDeniedf("not a member of department %d", departmentID)
	}
	return s.messages.GroupHistory(ctx, departmentID, chatType)
}

// Conversations joins the owner's index rows with counterpart display
// data and the last-message body. The last-message reference is weak:
// rows whose message or counterpart no longer resolves degrade
// gracefully instead of failing the listing.
func (s *ChatService) Conversations(ctx context.Context, ownerID int64) ([]*models.Conversation, error) {
	rows, err := s.index.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Conversation, 0, len(rows))
	for _, row := range rows {
		other, err := s.dir.UserByID(ctx, row.OtherUserID)
		if err != nil {
			continue
		}
		conv := &models.Conversation{
			OtherUserID:   other.ID,
			OtherUserName: other.Name,
			OtherUserRole: other.Role,
			UnreadCount:   row.UnreadCount,
			UpdatedAt:     row.UpdatedAt,
		}
		if row.LastMessageID != "" {
			if last, err := s.messages.Get(ctx, row.LastMessageID); err == nil {
				conv.LastMessage = last.Body
			}
		}
		out = append(out, conv)
	}
	return out, nil
}

// MarkRead flips stored messages and resets the index counter as one
// logical unit. Both halves are idempotent and order independent, so a
// partial failure is safe to retry.
func (s *ChatService) MarkRead(ctx context.Context, ownerID, otherID int64) error {
	if _, err := s.messages.MarkRead(ctx, ownerID, otherID); err != nil {
		return err
	}
	return s.index.ResetUnread(ctx, ownerID, otherID, models.ChatTypeOneToOne)
}

func (s *ChatService) Permissions(ctx context.Context, userID, departmentID int64, chatType models.ChatType) (*models.Permissions, error) {
	if !chatType.Valid() {
		return nil, apperr.Validationf("unknown chat type %q", chatType)
	}
	if _, err := s.dir.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	return &models.Permissions{
		CanPost:           s.perms.CanPost(ctx, userID, chatType, departmentID),
		CanRead:           s.perms.CanRead(ctx, userID, departmentID),
		FacultyMonitoring: s.perms.IsMonitoring(ctx, departmentID),
		ChatType:          chatType,
	}, nil
}

// ChatUsers lists the members of the caller's department, minus the
// caller: the set of people they may open a direct chat with.
func (s *ChatService) ChatUsers(ctx context.Context, userID int64) ([]*models.User, error) {
	user, err := s.dir.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.dir.UsersInDepartment(ctx, user.DepartmentID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, u := range all {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *ChatService) GroupParticipants(ctx context.Context, userID, departmentID int64) ([]*models.User, error) {
	if !s.perms.CanRead(ctx, userID, departmentID) {
		return nil, apperr.PermissionDeniedf("not a member of department %d", departmentID)
	}
	return s.dir.UsersInDepartment(ctx, departmentID)
}

func (s *ChatService) publish(ctx context.Context, msg *models.ChatMessage) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishMessageSent(ctx, msg); err != nil {
		log.Warn().Err(err).Str("message", msg.ID).Msg("kafka publish")
	}
}
