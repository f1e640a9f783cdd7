// Package store holds the durable chat state: the append-only message
// log and the per-(owner, counterpart) conversation index. Two
// implementations exist for each, in-memory and Mongo.
package store

import (
	"context"

	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// MessageDraft is what callers hand to Append; the store assigns ID and
// CreatedAt itself.
type MessageDraft struct {
	SenderID      int64
	ReceiverID    *int64
	ChatType      models.ChatType
	DepartmentID  int64
	Body          string
	AttachmentURL string
}

// MessageStore is the append-only message log. Messages are never
// deleted and never mutated apart from the read flag.
type MessageStore interface {
	// Append validates the draft against the directory (unknown
	// sender/receiver/department is NotFound, a cross-department direct
	// send is PermissionDenied, enforced here, not only as policy) and
	// persists it.
	Append(ctx context.Context, draft MessageDraft) (*models.ChatMessage, error)

	// History returns all direct messages between a and b, either
	// direction, ascending by (created_at, id). Symmetric in a and b.
	History(ctx context.Context, a, b int64) ([]*models.ChatMessage, error)

	// GroupHistory returns a department group's messages ascending.
	GroupHistory(ctx context.Context, departmentID int64, chatType models.ChatType) ([]*models.ChatMessage, error)

	// MarkRead flips unread messages from other to owner to read and
	// returns how many actually changed. Idempotent.
	MarkRead(ctx context.Context, ownerID, otherID int64) (int64, error)

	// Get resolves a message id. Used for the weak last-message lookup.
	Get(ctx context.Context, id string) (*models.ChatMessage, error)

	// Discard removes a message appended earlier in the same operation.
	// Compensation for a send whose index update failed; nothing else in
	// the system deletes messages.
	Discard(ctx context.Context, id string) error
}

// ConversationIndex maintains one summary row per ordered
// (owner, other, chat_type) triple.
type ConversationIndex interface {
	// TouchPair upserts both sides of a direct send as one atomic unit:
	// sender and receiver rows get LastMessageID and UpdatedAt, only the
	// receiver's UnreadCount increments by exactly 1. Either both rows
	// land or neither does, and the unit never races a concurrent
	// ResetUnread on the same rows.
	TouchPair(ctx context.Context, senderID, receiverID int64, chatType models.ChatType, messageID string) error

	// ResetUnread zeroes the row's unread count. Missing row is a no-op.
	ResetUnread(ctx context.Context, ownerID, otherID int64, chatType models.ChatType) error

	// List returns the owner's summaries ordered by UpdatedAt descending.
	List(ctx context.Context, ownerID int64) ([]*models.ConversationSummary, error)
}
