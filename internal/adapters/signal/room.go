package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(sess *core.Session, payload any) error {
	p := payload.(*protocol.RoomRef)
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", p.Key().String()).Msg("join")
	return ctl.Orch.JoinRoom(sess, p.Key())
}

// handleLeave leaves one room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sess *core.Session, payload any) error {
	p := payload.(*protocol.RoomRef)
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", p.Key().String()).Msg("leave")
	return ctl.Orch.LeaveRoom(sess, p.Key())
}

func (ctl *SignalWSController) handleTyping(typing bool) handlerFunc {
	return func(sess *core.Session, payload any) error {
		p := payload.(*protocol.RoomRef)
		return ctl.Orch.Typing(sess, p.Key(), typing)
	}
}
