package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

func (ctl *SignalWSController) handleBattleCreate(sess *core.Session, payload any) error {
	p := payload.(*protocol.BattleCreatePayload)
	id, err := ctl.Orch.CreateBattle(sess, *p)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("battle", id).Msg("battle created")
	return nil
}

func (ctl *SignalWSController) handleBattleJoin(sess *core.Session, payload any) error {
	p := payload.(*protocol.BattleRef)
	return ctl.Orch.JoinBattle(sess, p.BattleID)
}

func (ctl *SignalWSController) handleBattleVote(sess *core.Session, payload any) error {
	p := payload.(*protocol.BattleVotePayload)
	return ctl.Orch.Relay(sess, domain.ResolveRoomKey(domain.RoomBattle, p.BattleID), protocol.BattleVote,
		protocol.BattleVoteCast{BattleVotePayload: *p, VoterID: sess.UserID})
}

func (ctl *SignalWSController) handleBattleReady(sess *core.Session, payload any) error {
	p := payload.(*protocol.BattleReadyPayload)
	return ctl.Orch.Relay(sess, domain.ResolveRoomKey(domain.RoomBattle, p.BattleID), protocol.BattleReady,
		protocol.BattleReadyCast{BattleReadyPayload: *p, SubjectID: sess.UserID})
}

func (ctl *SignalWSController) handleGameCreate(sess *core.Session, payload any) error {
	p := payload.(*protocol.GameCreatePayload)
	id, err := ctl.Orch.CreateGame(sess, *p)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("game", id).Int("invited", len(p.Invited)).Msg("game created")
	return nil
}

func (ctl *SignalWSController) handleGameJoin(sess *core.Session, payload any) error {
	p := payload.(*protocol.GameRef)
	return ctl.Orch.JoinGame(sess, p.GameID)
}

func (ctl *SignalWSController) handleGameTrick(sess *core.Session, payload any) error {
	p := payload.(*protocol.GameTrickPayload)
	return ctl.Orch.Relay(sess, domain.ResolveRoomKey(domain.RoomGame, p.GameID), protocol.GameTrick,
		protocol.GameTrickCast{GameTrickPayload: *p, SubjectID: sess.UserID})
}

func (ctl *SignalWSController) handleGamePass(sess *core.Session, payload any) error {
	p := payload.(*protocol.GamePassPayload)
	return ctl.Orch.Relay(sess, domain.ResolveRoomKey(domain.RoomGame, p.GameID), protocol.GamePass,
		protocol.GamePassCast{GamePassPayload: *p, SubjectID: sess.UserID})
}
