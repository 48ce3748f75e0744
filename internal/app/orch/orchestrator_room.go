package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

// JoinRoom joins and replies room:joined. The rest of the room only hears
// about it when the subject is new there, not for a second tab.
func (o *Orchestrator) JoinRoom(sess *core.Session, key domain.RoomKey) error {
	known := o.Rooms.HasSubject(key, sess.UserID)
	if _, err := o.Rooms.Join(sess, key.Type, key.ID); err != nil {
		return err
	}
	o.Reply(sess, protocol.RoomJoined, protocol.RoomStatePayload{
		RoomType: key.Type,
		RoomID:   key.ID,
		Members:  o.Rooms.Members(key.Type, key.ID),
	})
	if !known {
		o.Rooms.Broadcast(key.Type, key.ID, protocol.RoomMemberJoined, protocol.MemberPayload{
			RoomType:  key.Type,
			RoomID:    key.ID,
			SubjectID: sess.UserID,
		}, sess)
	}
	return nil
}

// LeaveRoom always confirms with room:left; leaving a room the session is
// not in changes nothing and tells no one else.
func (o *Orchestrator) LeaveRoom(sess *core.Session, key domain.RoomKey) error {
	gone := false
	if sess.InRoom(key) {
		gone = o.Rooms.Leave(sess, key.Type, key.ID)
	}
	o.Reply(sess, protocol.RoomLeft, protocol.RoomStatePayload{RoomType: key.Type, RoomID: key.ID})
	if gone {
		o.Rooms.Broadcast(key.Type, key.ID, protocol.RoomMemberLeft, protocol.MemberPayload{
			RoomType:  key.Type,
			RoomID:    key.ID,
			SubjectID: sess.UserID,
		}, sess)
	}
	return nil
}

// Relay forwards a member's action to the whole room, sender included, so
// every client applies actions in the same order.
func (o *Orchestrator) Relay(sess *core.Session, key domain.RoomKey, event protocol.Event, payload any) error {
	if !o.Rooms.IsMember(sess, key) {
		return domain.ErrNotInRoom
	}
	res := o.Rooms.Broadcast(key.Type, key.ID, event, payload, nil)
	log.Debug().Str("module", "orch").Str("room", key.String()).Str("event", string(event)).Int("sent_to", res.SentTo).Msg("relayed")
	return nil
}

func (o *Orchestrator) Typing(sess *core.Session, key domain.RoomKey, typing bool) error {
	if !o.Rooms.IsMember(sess, key) {
		return domain.ErrNotInRoom
	}
	o.Rooms.Broadcast(key.Type, key.ID, protocol.TypingUpdate, protocol.TypingUpdatePayload{
		RoomType:  key.Type,
		RoomID:    key.ID,
		SubjectID: sess.UserID,
		Typing:    typing,
	}, sess)
	return nil
}

// Presence announces a status change in every room the session is in.
func (o *Orchestrator) Presence(sess *core.Session, status string) int {
	payload := protocol.PresenceUpdatePayload{SubjectID: sess.UserID, Status: status}
	if status == "offline" {
		seen := o.now()
		payload.LastSeen = &seen
	}
	rooms := sess.Rooms()
	for _, key := range rooms {
		o.Rooms.Broadcast(key.Type, key.ID, protocol.PresenceUpdate, payload, sess)
	}
	return len(rooms)
}
