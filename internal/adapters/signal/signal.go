package signal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/skatehub/gateway/internal/app/auth"
	"github.com/skatehub/gateway/internal/app/orch"
	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

// DeviceIDKey is the gin context key the device cookie middleware fills.
const DeviceIDKey = "device_id"

type Authenticator interface {
	Authenticate(ctx context.Context, at auth.Attempt) (*core.Session, error)
}

type Options struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	PongWait    time.Duration
	WriteWait   time.Duration
	SendBuffer  int
	EventRate   rate.Limit
	EventBurst  int
	CheckOrigin func(r *http.Request) bool
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 64,
		EventRate:  20,
		EventBurst: 40,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	Auth Authenticator

	opts     Options
	router   *protocol.Router
	upgrader websocket.Upgrader
	handlers map[protocol.Event]handlerFunc
	pumps    conc.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, a Authenticator, opts Options) *SignalWSController {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	ctl := &SignalWSController{
		Orch:   o,
		Auth:   a,
		opts:   opts,
		router: protocol.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	ctl.handlers = ctl.routes()
	return ctl
}

// Wait blocks until every pump started by this controller has returned.
func (ctl *SignalWSController) Wait() { ctl.pumps.Wait() }

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeAccountInactive:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// HandleSignal admits the connection before upgrading; a rejected attempt
// gets a plain JSON error and never becomes a WebSocket.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sess, err := ctl.Auth.Authenticate(c.Request.Context(), auth.Attempt{
		Token:      bearerToken(c),
		SourceAddr: c.ClientIP(),
		DeviceID:   c.GetString(DeviceIDKey),
	})
	if err != nil {
		pub := domain.Public(err)
		c.AbortWithStatusJSON(statusFor(pub.Code), gin.H{"code": pub.Code, "message": pub.Message})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Msg("new WS connection")
	ctl.Serve(ctx, sess, ws)
}

// Serve runs an admitted session over an upgraded socket until either side
// goes away or the session is kicked.
func (ctl *SignalWSController) Serve(ctx context.Context, sess *core.Session, ws *websocket.Conn) {
	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sess, conn, cancel)

	throttle := newEventThrottle(ctl.opts.EventRate, ctl.opts.EventBurst)
	ctl.pumps.Go(func() { ctl.writePump(ctx, conn) })
	ctl.pumps.Go(func() { ctl.readPump(ctx, cancel, sess, conn, throttle) })
}
