package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// MemoryMessageStore keeps the log in process memory. Used in dev mode
// and tests; the Mongo store is the production implementation.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	dir      directory.Directory
	messages []*models.ChatMessage
	byID     map[string]*models.ChatMessage
	seq      int64
	lastTime time.Time
}

func NewMemoryMessageStore(dir directory.Directory) *MemoryMessageStore {
	return &MemoryMessageStore{dir: dir, byID: make(map[string]*models.ChatMessage)}
}

func (s *MemoryMessageStore) Append(ctx context.Context, draft MessageDraft) (*models.ChatMessage, error) {
	if err := validateDraft(ctx, s.dir, draft); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = now
	s.seq++

	msg := &models.ChatMessage{
		ID:            fmt.Sprintf("%016x", s.seq),
		SenderID:      draft.SenderID,
		ReceiverID:    draft.ReceiverID,
		ChatType:      draft.ChatType,
		DepartmentID:  draft.DepartmentID,
		Body:          draft.Body,
		AttachmentURL: draft.AttachmentURL,
		CreatedAt:     now,
	}
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	cp := *msg
	return &cp, nil
}

func (s *MemoryMessageStore) History(ctx context.Context, a, b int64) ([]*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ChatMessage
	for _, m := range s.messages {
		if m.ChatType != models.ChatTypeOneToOne || m.ReceiverID == nil {
			continue
		}
		if (m.SenderID == a && *m.ReceiverID == b) || (m.SenderID == b && *m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryMessageStore) GroupHistory(ctx context.Context, departmentID int64, chatType models.ChatType) ([]*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ChatMessage
	for _, m := range s.messages {
		if m.DepartmentID == departmentID && m.ChatType == chatType {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryMessageStore) MarkRead(ctx context.Context, ownerID, otherID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ChatType != models.ChatTypeOneToOne || m.ReceiverID == nil || m.Read {
			continue
		}
		if *m.ReceiverID == ownerID && m.SenderID == otherID {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryMessageStore) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return apperr.NotFoundf("message %s", id)
	}
	delete(s.byID, id)
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryMessageStore) Get(ctx context.Context, id string) (*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFoundf("message %s", id)
	}
	cp := *m
	return &cp, nil
}

func sortMessages(ms []*models.ChatMessage) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return strings.Compare(ms[i].ID, ms[j].ID) < 0
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

type summaryKey struct {
	owner    int64
	other    int64
	chatType models.ChatType
}

// MemoryConversationIndex guards every row mutation with one mutex, so a
// Touch and a concurrent ResetUnread on the same row serialize.
type MemoryConversationIndex struct {
	mu   sync.Mutex
	rows map[summaryKey]*models.ConversationSummary
}

func NewMemoryConversationIndex() *MemoryConversationIndex {
	return &MemoryConversationIndex{rows: make(map[summaryKey]*models.ConversationSummary)}
}

func (x *MemoryConversationIndex) Touch(ctx context.Context, ownerID, otherID int64, chatType models.ChatType, messageID string, incoming bool) (*models.ConversationSummary, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	cp := *x.touchLocked(ownerID, otherID, chatType, messageID, incoming)
	return &cp, nil
}

// TouchPair holds the mutex across both rows, so no reader observes a
// half-applied send and no mutation can fail between the two.
func (x *MemoryConversationIndex) TouchPair(ctx context.Context, senderID, receiverID int64, chatType models.ChatType, messageID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.touchLocked(senderID, receiverID, chatType, messageID, false)
	x.touchLocked(receiverID, senderID, chatType, messageID, true)
	return nil
}

func (x *MemoryConversationIndex) touchLocked(ownerID, otherID int64, chatType models.ChatType, messageID string, incoming bool) *models.ConversationSummary {
	key := summaryKey{owner: ownerID, other: otherID, chatType: chatType}
	row, ok := x.rows[key]
	if !ok {
		row = &models.ConversationSummary{OwnerID: ownerID, OtherUserID: otherID, ChatType: chatType}
		x.rows[key] = row
	}
	row.LastMessageID = messageID
	row.UpdatedAt = time.Now().UTC()
	if incoming {
		row.UnreadCount++
	}
	return row
}

func (x *MemoryConversationIndex) ResetUnread(ctx context.Context, ownerID, otherID int64, chatType models.ChatType) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if row, ok := x.rows[summaryKey{owner: ownerID, other: otherID, chatType: chatType}]; ok {
		row.UnreadCount = 0
	}
	return nil
}

func (x *MemoryConversationIndex) List(ctx context.Context, ownerID int64) ([]*models.ConversationSummary, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []*models.ConversationSummary
	for _, row := range x.rows {
		if row.OwnerID == ownerID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
