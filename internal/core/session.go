package core

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skatehub/gateway/internal/domain"
)

type SessionID string

// Session is the per-connection state. Its room set mirrors the registry:
// only rooms bind and unbind keys, always under the room's lock.
type Session struct {
	ID          SessionID
	UserID      domain.UserID
	ExternalID  string
	DeviceID    string
	Roles       []string
	ConnectedAt time.Time

	mu     sync.RWMutex
	rooms  map[domain.RoomKey]struct{}
	signal SignalConnection
}

func NewSession(user domain.User, ident domain.Identity, deviceID string, now time.Time) *Session {
	return &Session{
		ID:          SessionID(uuid.NewString()),
		UserID:      user.ID,
		ExternalID:  ident.Subject,
		DeviceID:    deviceID,
		Roles:       ident.Roles(),
		ConnectedAt: now,
		rooms:       make(map[domain.RoomKey]struct{}),
	}
}

func (s *Session) HasRole(role string) bool { return slices.Contains(s.Roles, role) }

func (s *Session) AttachSignal(sc SignalConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signal = sc
}

func (s *Session) Signal() SignalConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signal
}

// Send is best effort; a session without a transport drops the frame.
func (s *Session) Send(f Frame) error {
	sc := s.Signal()
	if sc == nil {
		return ErrNoSignal
	}
	return sc.TrySend(f)
}

func (s *Session) BindRoom(key domain.RoomKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[key] = struct{}{}
}

func (s *Session) UnbindRoom(key domain.RoomKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, key)
}

func (s *Session) InRoom(key domain.RoomKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[key]
	return ok
}

// Rooms returns a snapshot of the joined room keys.
func (s *Session) Rooms() []domain.RoomKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		out = append(out, k)
	}
	return out
}
