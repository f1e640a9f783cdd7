// Package ws carries live delivery: the session registry (user id -> set
// of connections), the group topic table, and the websocket endpoint.
// Delivery is best effort: the store is the durability guarantee and
// clients reconcile through history on reconnect.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// Topic is a department-scoped broadcast channel.
type Topic struct {
	DepartmentID int64
	ChatType     models.ChatType
}

// Client is one live connection. A user may hold several at once; all of
// them receive the user's direct traffic.
type Client struct {
	ID           string
	UserID       int64
	Role         models.Role
	DepartmentID int64
	Send         chan []byte
}

// Presence mirrors connect/disconnect edges into Redis so other services
// can see who is online. Nil-safe: the hub works without it.
type Presence interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
}

// MonitorMirror shares staff group presence across instances. Without it
// a faculty member watching a group on one instance would be invisible
// to the permission checks running on another. Entries expire, so a
// crashed instance cannot leave a department monitored forever; the ping
// ticker re-arms them. Nil-safe like Presence.
type MonitorMirror interface {
	SetMonitoring(ctx context.Context, departmentID int64, connID string, on bool) error
	IsMonitored(ctx context.Context, departmentID int64) (bool, error)
}

type Hub struct {
	mu            sync.RWMutex
	clientsByUser map[int64]map[*Client]struct{}
	subscribers   map[Topic]map[*Client]struct{}
	topicsOf      map[*Client]map[Topic]struct{}
	presence      Presence
	monitors      MonitorMirror
}

func NewHub(presence Presence, monitors MonitorMirror) *Hub {
	return &Hub{
		clientsByUser: make(map[int64]map[*Client]struct{}),
		subscribers:   make(map[Topic]map[*Client]struct{}),
		topicsOf:      make(map[*Client]map[Topic]struct{}),
		presence:      presence,
		monitors:      monitors,
	}
}

// monitorEdge reports whether this client's subscription to the topic
// constitutes faculty monitoring of a department group.
func monitorEdge(c *Client, topic Topic) bool {
	return c.Role.Staff() && topic.ChatType == models.ChatTypeDepartmentGroup
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clientsByUser[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clientsByUser[c.UserID] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1
	h.mu.Unlock()

	if first && h.presence != nil {
		_ = h.presence.SetOnline(context.Background(), c.UserID, true)
	}
	log.Debug().Int64("user", c.UserID).Str("conn", c.ID).Msg("ws registered")
}

// Unregister removes the client from the registry and every topic it
// subscribed to, then closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	last := false
	if set, ok := h.clientsByUser[c.UserID]; ok {
		if _, member := set[c]; member {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clientsByUser, c.UserID)
				last = true
			}
			close(c.Send)
		}
	}
	var watched []int64
	for topic := range h.topicsOf[c] {
		delete(h.subscribers[topic], c)
		if len(h.subscribers[topic]) == 0 {
			delete(h.subscribers, topic)
		}
		if monitorEdge(c, topic) {
			watched = append(watched, topic.DepartmentID)
		}
	}
	delete(h.topicsOf, c)
	h.mu.Unlock()

	if last && h.presence != nil {
		_ = h.presence.SetOnline(context.Background(), c.UserID, false)
	}
	for _, dept := range watched {
		h.mirrorMonitor(c, dept, false)
	}
	log.Debug().Int64("user", c.UserID).Str("conn", c.ID).Msg("ws unregistered")
}

func (h *Hub) Subscribe(c *Client, topic Topic) {
	h.mu.Lock()
	if _, ok := h.subscribers[topic]; !ok {
		h.subscribers[topic] = make(map[*Client]struct{})
	}
	h.subscribers[topic][c] = struct{}{}
	if _, ok := h.topicsOf[c]; !ok {
		h.topicsOf[c] = make(map[Topic]struct{})
	}
	h.topicsOf[c][topic] = struct{}{}
	h.mu.Unlock()

	if monitorEdge(c, topic) {
		h.mirrorMonitor(c, topic.DepartmentID, true)
	}
}

func (h *Hub) Unsubscribe(c *Client, topic Topic) {
	h.mu.Lock()
	delete(h.subscribers[topic], c)
	if len(h.subscribers[topic]) == 0 {
		delete(h.subscribers, topic)
	}
	delete(h.topicsOf[c], topic)
	h.mu.Unlock()

	if monitorEdge(c, topic) {
		h.mirrorMonitor(c, topic.DepartmentID, false)
	}
}

// RefreshMonitors re-arms the mirror's expiring entries for every
// department group this client is watching. Driven by the connection's
// ping ticker.
func (h *Hub) RefreshMonitors(c *Client) {
	h.mu.RLock()
	var watched []int64
	for topic := range h.topicsOf[c] {
		if monitorEdge(c, topic) {
			watched = append(watched, topic.DepartmentID)
		}
	}
	h.mu.RUnlock()

	for _, dept := range watched {
		h.mirrorMonitor(c, dept, true)
	}
}

func (h *Hub) mirrorMonitor(c *Client, departmentID int64, on bool) {
	if h.monitors == nil {
		return
	}
	if err := h.monitors.SetMonitoring(context.Background(), departmentID, c.ID, on); err != nil {
		log.Warn().Err(err).Int64("department", departmentID).Msg("monitor mirror")
	}
}

// SendToUser fans a payload out to all of a user's connections. Offline
// users are skipped; a full send buffer drops the frame rather than
// stall the caller.
func (h *Hub) SendToUser(userID int64, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("ws marshal")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		select {
		case c.Send <- b:
		default:
			// slow consumer; read pump will reap a dead connection
		}
	}
}

// BroadcastTopic delivers to every connection subscribed to the
// department+chatType topic.
func (h *Hub) BroadcastTopic(departmentID int64, chatType models.ChatType, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("ws marshal")
		return
	}
	topic := Topic{DepartmentID: departmentID, ChatType: chatType}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscribers[topic] {
		select {
		case c.Send <- b:
		default:
		}
	}
}

// IsMonitoring reports whether any faculty/admin connection is currently
// subscribed to the department's general group topic, here or on another
// instance. This is the live join/leave signal the permission engine
// consults; it clears as soon as the last such connection unsubscribes
// or drops, and the mirror's expiry covers instances that die without
// cleaning up.
func (h *Hub) IsMonitoring(departmentID int64) bool {
	topic := Topic{DepartmentID: departmentID, ChatType: models.ChatTypeDepartmentGroup}
	h.mu.RLock()
	for c := range h.subscribers[topic] {
		if c.Role.Staff() {
			h.mu.RUnlock()
			return true
		}
	}
	h.mu.RUnlock()

	if h.monitors == nil {
		return false
	}
	remote, err := h.monitors.IsMonitored(context.Background(), departmentID)
	if err != nil {
		log.Warn().Err(err).Int64("department", departmentID).Msg("monitor mirror")
		return false
	}
	return remote
}
