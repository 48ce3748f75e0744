package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

// LobbyKey is the room every session joins on connect unless disabled.
var LobbyKey = domain.ResolveRoomKey(domain.RoomGlobal, "lobby")

type Orchestrator struct {
	Rooms *app.RoomRegistry
	Conns *app.Connections

	lobby bool
	now   func() time.Time
}

type Option func(*Orchestrator)

func WithLobby(enabled bool) Option {
	return func(o *Orchestrator) { o.lobby = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(rooms *app.RoomRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Rooms: rooms,
		Conns: rooms.Connections(),
		lobby: true,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connect makes an authenticated session reachable and, when enabled, puts
// it in the lobby with an online presence announcement.
func (o *Orchestrator) Connect(sess *core.Session, sc core.SignalConnection, cancel context.CancelFunc) {
	sess.AttachSignal(sc)
	o.Conns.Bind(sess, cancel)

	if !o.lobby {
		return
	}
	if err := o.JoinRoom(sess, LobbyKey); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Msg("lobby join")
		return
	}
	o.Rooms.Broadcast(LobbyKey.Type, LobbyKey.ID, protocol.PresenceUpdate, protocol.PresenceUpdatePayload{
		SubjectID: sess.UserID,
		Status:    "online",
	}, sess)
}

// Disconnect runs once per connection from the read pump's cleanup path.
func (o *Orchestrator) Disconnect(sess *core.Session) {
	wasInLobby := sess.InRoom(LobbyKey)
	left := o.Rooms.LeaveAll(sess)
	for _, key := range left {
		o.Rooms.Broadcast(key.Type, key.ID, protocol.RoomMemberLeft, protocol.MemberPayload{
			RoomType:  key.Type,
			RoomID:    key.ID,
			SubjectID: sess.UserID,
		}, sess)
	}
	o.Conns.Unbind(sess)

	if wasInLobby && !o.Conns.Online(sess.UserID) {
		seen := o.now()
		o.Rooms.Broadcast(LobbyKey.Type, LobbyKey.ID, protocol.PresenceUpdate, protocol.PresenceUpdatePayload{
			SubjectID: sess.UserID,
			Status:    "offline",
			LastSeen:  &seen,
		}, sess)
	}
	log.Info().Str("module", "orch").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Int("rooms_left", len(left)).Msg("disconnected")
}

// Kick cancels the connection; its own cleanup path does the rest.
func (o *Orchestrator) Kick(sid core.SessionID) bool {
	return o.Conns.Cancel(sid)
}

// Reply sends one event to a single session.
func (o *Orchestrator) Reply(sess *core.Session, event protocol.Event, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", string(event)).Msg("reply encode")
		return
	}
	if err := sess.Send(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Str("event", string(event)).Msg("reply dropped")
	}
}
