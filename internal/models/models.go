package models

import "time"

type ChatType string

const (
	ChatTypeOneToOne            ChatType = "ONE_TO_ONE"
	ChatTypeDepartmentGroup     ChatType = "DEPARTMENT_GROUP"
	ChatTypeFacultyStudentGroup ChatType = "FACULTY_STUDENT_GROUP"
)

func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeOneToOne, ChatTypeDepartmentGroup, ChatTypeFacultyStudentGroup:
		return true
	}
	return false
}

// Group reports whether the chat type is a department-scoped broadcast.
func (t ChatType) Group() bool {
	return t == ChatTypeDepartmentGroup || t == ChatTypeFacultyStudentGroup
}

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
	RoleAdmin   Role = "ADMIN"
)

// Staff reports whether the role carries faculty-level privileges.
func (r Role) Staff() bool { return r == RoleFaculty || r == RoleAdmin }

// User is read-only directory data; the chat service never writes it.
type User struct {
	ID           int64  `bson:"_id" json:"id"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	Role         Role   `bson:"role" json:"role"`
	DepartmentID int64  `bson:"department_id" json:"department_id"`
}

// ChatMessage is immutable once appended except for the read flag,
// which only ever moves false -> true.
type ChatMessage struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	SenderID      int64     `bson:"sender_id" json:"sender_id"`
	ReceiverID    *int64    `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	ChatType      ChatType  `bson:"chat_type" json:"chat_type"`
	DepartmentID  int64     `bson:"department_id" json:"department_id"`
	Body          string    `bson:"body" json:"body"`
	AttachmentURL string    `bson:"attachment_url,omitempty" json:"attachment_url,omitempty"`
	Read          bool      `bson:"is_read" json:"is_read"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// ConversationSummary is the per-(owner, counterpart) inbox row. One row
// per ordered (owner, other, chat_type) triple, created lazily on first
// exchange. LastMessageID is a weak reference: resolving it may miss.
type ConversationSummary struct {
	OwnerID       int64     `bson:"owner_id" json:"owner_id"`
	OtherUserID   int64     `bson:"other_user_id" json:"other_user_id"`
	ChatType      ChatType  `bson:"chat_type" json:"chat_type"`
	LastMessageID string    `bson:"last_message_id" json:"last_message_id"`
	UnreadCount   int       `bson:"unread_count" json:"unread_count"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// Conversation is a summary joined with counterpart display data for the
// conversations listing.
type Conversation struct {
	OtherUserID   int64     `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
	OtherUserRole Role      `json:"other_user_role"`
	LastMessage   string    `json:"last_message"`
	UnreadCount   int       `json:"unread_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Permissions mirrors what clients need to render the group composer.
type Permissions struct {
	CanPost           bool     `json:"can_post"`
	CanRead           bool     `json:"can_read"`
	FacultyMonitoring bool     `json:"is_faculty_monitoring"`
	ChatType          ChatType `json:"chat_type"`
}
