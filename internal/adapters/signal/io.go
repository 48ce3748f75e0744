package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

type handlerFunc func(sess *core.Session, payload any) error

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(ctl.opts.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection's inbound side. Events are handled one at a
// time in arrival order, and its exit is the only disconnect path.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sess *core.Session, c *WsSignalConn, throttle *eventThrottle) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
		ctl.Orch.Disconnect(sess)
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !throttle.Allow() {
			log.Debug().Str("module", "signal").Str("sid", string(sess.ID)).Msg("event throttled")
			ctl.sendError(sess, domain.New(domain.CodeRateLimited, "slow down"))
			continue
		}
		ctl.handleSignal(sess, data)
	}
}

func (ctl *SignalWSController) handleSignal(sess *core.Session, data []byte) {
	msg, err := ctl.router.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("rejected event")
		ctl.sendError(sess, err)
		return
	}
	h, ok := ctl.handlers[msg.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", string(msg.Type)).Msg("no handler for event")
		return
	}
	if err := h(sess, msg.Payload); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Str("type", string(msg.Type)).Msg("event failed")
		ctl.sendError(sess, err)
	}
}

func (ctl *SignalWSController) sendError(sess *core.Session, err error) {
	_ = sess.Send(protocol.EncodeError(err))
}

func (ctl *SignalWSController) routes() map[protocol.Event]handlerFunc {
	return map[protocol.Event]handlerFunc{
		protocol.RoomJoin:       ctl.handleJoin,
		protocol.RoomLeave:      ctl.handleLeave,
		protocol.TypingStart:    ctl.handleTyping(true),
		protocol.TypingStop:     ctl.handleTyping(false),
		protocol.BattleCreate:   ctl.handleBattleCreate,
		protocol.BattleJoin:     ctl.handleBattleJoin,
		protocol.BattleVote:     ctl.handleBattleVote,
		protocol.BattleReady:    ctl.handleBattleReady,
		protocol.GameCreate:     ctl.handleGameCreate,
		protocol.GameJoin:       ctl.handleGameJoin,
		protocol.GameTrick:      ctl.handleGameTrick,
		protocol.GamePass:       ctl.handleGamePass,
		protocol.PresenceUpdate: ctl.handlePresence,
		protocol.Ping:           ctl.handlePing,
	}
}
