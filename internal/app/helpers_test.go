package app_test

import (
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func newSession(uid string) (*core.Session, *fakeConn) {
	conn := &fakeConn{}
	s := core.NewSession(
		domain.User{ID: domain.UserID(uid), ExternalID: "ext-" + uid, Username: uid, Active: true},
		domain.Identity{Subject: "ext-" + uid},
		"",
		time.Now(),
	)
	s.AttachSignal(conn)
	return s, conn
}
