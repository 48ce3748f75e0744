package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
)

type connEntry struct {
	Session *core.Session
	Cancel  context.CancelFunc
}

// Connections indexes live sessions by id and by subject. A subject may hold
// several sessions at once (tabs, phone plus web).
type Connections struct {
	mu        sync.RWMutex
	sessions  map[core.SessionID]*connEntry
	bySubject map[domain.UserID]map[core.SessionID]*core.Session
}

func NewConnections() *Connections {
	return &Connections{
		sessions:  make(map[core.SessionID]*connEntry),
		bySubject: make(map[domain.UserID]map[core.SessionID]*core.Session),
	}
}

func (c *Connections) Bind(sess *core.Session, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sess.ID] = &connEntry{Session: sess, Cancel: cancel}
	byID, ok := c.bySubject[sess.UserID]
	if !ok {
		byID = make(map[core.SessionID]*core.Session)
		c.bySubject[sess.UserID] = byID
	}
	byID[sess.ID] = sess
	log.Info().Str("module", "app.connections").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Msg("bound session")
}

func (c *Connections) Unbind(sess *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sess.ID)
	if byID, ok := c.bySubject[sess.UserID]; ok {
		delete(byID, sess.ID)
		if len(byID) == 0 {
			delete(c.bySubject, sess.UserID)
		}
	}
	log.Info().Str("module", "app.connections").Str("sid", string(sess.ID)).Msg("unbind session")
}

func (c *Connections) Get(sid core.SessionID) (*core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// SessionsOf returns every live session of a subject.
func (c *Connections) SessionsOf(uid domain.UserID) []*core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byID := c.bySubject[uid]
	out := make([]*core.Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out
}

func (c *Connections) Online(uid domain.UserID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySubject[uid]) > 0
}

func (c *Connections) Count() (sessions, subjects int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions), len(c.bySubject)
}

// Cancel ends the connection's context; its pumps then run the disconnect path.
func (c *Connections) Cancel(sid core.SessionID) bool {
	c.mu.RLock()
	e, ok := c.sessions[sid]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.connections").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// CancelAll is used on shutdown.
func (c *Connections) CancelAll() {
	c.mu.RLock()
	entries := make([]*connEntry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.RUnlock()
	for _, e := range entries {
		if e.Cancel != nil {
			e.Cancel()
		}
	}
}
