package signal

import (
	"time"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/protocol"
)

func (ctl *SignalWSController) handlePing(sess *core.Session, payload any) error {
	p := payload.(*protocol.PingPayload)
	ctl.Orch.Reply(sess, protocol.Pong, protocol.PongPayload{
		Timestamp:  p.Timestamp,
		ServerTime: time.Now().UnixMilli(),
	})
	return nil
}

func (ctl *SignalWSController) handlePresence(sess *core.Session, payload any) error {
	p := payload.(*protocol.PresencePayload)
	ctl.Orch.Presence(sess, p.Status)
	return nil
}
