package orch

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

// CreateBattle opens a battle room with the creator in it and invites the
// opponent, if any, on all of their connections.
func (o *Orchestrator) CreateBattle(sess *core.Session, p protocol.BattleCreatePayload) (string, error) {
	id := uuid.NewString()
	key := domain.ResolveRoomKey(domain.RoomBattle, id)
	if err := o.JoinRoom(sess, key); err != nil {
		return "", err
	}
	o.Reply(sess, protocol.BattleUpdate, protocol.BattleUpdatePayload{BattleID: id, State: protocol.BattleWaiting})

	if p.OpponentID != "" {
		res := o.Rooms.SendToSubject(domain.UserID(p.OpponentID), protocol.Notification, protocol.NotificationPayload{
			Kind: "battle_invite",
			From: sess.UserID,
			Data: map[string]any{"battleId": id, "spotId": p.SpotID},
		})
		log.Info().Str("module", "orch").Str("battle", id).Str("opponent", p.OpponentID).Int("reached", res.SentTo).Msg("battle invite")
	}
	return id, nil
}

// JoinBattle adds the opponent. Once both seats are taken the whole room is
// told the battle is active.
func (o *Orchestrator) JoinBattle(sess *core.Session, battleID string) error {
	key := domain.ResolveRoomKey(domain.RoomBattle, battleID)
	if err := o.JoinRoom(sess, key); err != nil {
		return err
	}
	if o.Rooms.MemberCount(key.Type, key.ID) < o.Rooms.Capacity(key.Type) {
		o.Reply(sess, protocol.BattleUpdate, protocol.BattleUpdatePayload{BattleID: battleID, State: protocol.BattleWaiting})
		return nil
	}
	o.Rooms.Broadcast(key.Type, key.ID, protocol.BattleUpdate, protocol.BattleUpdatePayload{
		BattleID:    battleID,
		State:       protocol.BattleActive,
		RoundNumber: 1,
	}, nil)
	return nil
}

func (o *Orchestrator) CreateGame(sess *core.Session, p protocol.GameCreatePayload) (string, error) {
	id := uuid.NewString()
	key := domain.ResolveRoomKey(domain.RoomGame, id)
	if err := o.JoinRoom(sess, key); err != nil {
		return "", err
	}
	o.Reply(sess, protocol.GameUpdate, protocol.GameUpdatePayload{
		GameID:  id,
		State:   protocol.GameWaiting,
		Players: []domain.UserID{sess.UserID},
	})
	for _, invited := range p.Invited {
		o.Rooms.SendToSubject(domain.UserID(invited), protocol.Notification, protocol.NotificationPayload{
			Kind: "game_invite",
			From: sess.UserID,
			Data: map[string]any{"gameId": id, "spotId": p.SpotID},
		})
	}
	return id, nil
}

// JoinGame tells every player the new roster. A full game goes active.
func (o *Orchestrator) JoinGame(sess *core.Session, gameID string) error {
	key := domain.ResolveRoomKey(domain.RoomGame, gameID)
	if err := o.JoinRoom(sess, key); err != nil {
		return err
	}
	state := protocol.GameWaiting
	if o.Rooms.MemberCount(key.Type, key.ID) >= o.Rooms.Capacity(key.Type) {
		state = protocol.GameActive
	}
	o.Rooms.Broadcast(key.Type, key.ID, protocol.GameUpdate, protocol.GameUpdatePayload{
		GameID:  gameID,
		State:   state,
		Players: o.Rooms.Members(key.Type, key.ID),
	}, nil)
	return nil
}
