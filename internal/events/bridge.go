// Package events bridges live delivery across chat service instances
// over NATS. A user's connections may be spread over several instances;
// the bridge republishes every fan-out so each instance can replay it
// into its own hub.
package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/models"
	"github.com/adityavishwakarma159/CampusConnect/internal/service"
)

const (
	kindUser  = "user"
	kindTopic = "topic"
)

type envelope struct {
	Origin       string          `json:"origin"`
	Kind         string          `json:"kind"`
	UserID       int64           `json:"user_id,omitempty"`
	DepartmentID int64           `json:"department_id,omitempty"`
	ChatType     models.ChatType `json:"chat_type,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// Bridge decorates a local Router: every send goes to the local hub and
// onto the NATS subject, and frames arriving from other instances are
// replayed into the local hub. Frames carry the origin instance id so
// an instance never replays its own publishes.
type Bridge struct {
	local   service.Router
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
}

func NewBridge(local service.Router, url, subject string) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		local:   local,
		nc:      nc,
		subject: subject,
		origin:  uuid.NewString(),
	}
	sub, err := nc.Subscribe(subject, b.handle)
	if err != nil {
		nc.Close()
		return nil, err
	}
	b.sub = sub
	return b, nil
}

func (b *Bridge) SendToUser(userID int64, payload any) {
	b.local.SendToUser(userID, payload)
	b.publish(envelope{Kind: kindUser, UserID: userID}, payload)
}

func (b *Bridge) BroadcastTopic(departmentID int64, chatType models.ChatType, payload any) {
	b.local.BroadcastTopic(departmentID, chatType, payload)
	b.publish(envelope{Kind: kindTopic, DepartmentID: departmentID, ChatType: chatType}, payload)
}

func (b *Bridge) publish(env envelope, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("bridge marshal")
		return
	}
	env.Origin = b.origin
	env.Payload = raw
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("bridge marshal")
		return
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		log.Warn().Err(err).Msg("bridge publish")
	}
}

func (b *Bridge) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Warn().Err(err).Msg("bridge decode")
		return
	}
	if env.Origin == b.origin {
		return
	}
	switch env.Kind {
	case kindUser:
		b.local.SendToUser(env.UserID, env.Payload)
	case kindTopic:
		b.local.BroadcastTopic(env.DepartmentID, env.ChatType, env.Payload)
	}
}

func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
}
