package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/domain"
)

// Room is a threadsafe in-memory room.
// Members are subjects; each subject holds the membership through one or
// more sessions and counts once against capacity.
// It never closes adapter-owned resources.
type Room struct {
	Key       domain.RoomKey
	CreatedAt time.Time

	capacity int
	mu       sync.RWMutex
	members  map[domain.UserID]map[SessionID]*Session
	count    atomic.Int64
}

func NewRoom(key domain.RoomKey, capacity int, now time.Time) *Room {
	return &Room{
		Key:       key,
		CreatedAt: now,
		capacity:  capacity,
		members:   make(map[domain.UserID]map[SessionID]*Session),
	}
}

func (r *Room) Capacity() int { return r.capacity }

// MemberCount never takes the room lock.
func (r *Room) MemberCount() int { return int(r.count.Load()) }

// AddMember checks capacity before touching any state. Re-adding a present
// subject never counts against capacity.
func (r *Room) AddMember(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holds, present := r.members[s.UserID]
	if !present {
		if r.capacity != domain.Unbounded && len(r.members) >= r.capacity {
			return domain.ErrRoomFull
		}
		holds = make(map[SessionID]*Session, 1)
		r.members[s.UserID] = holds
	}
	holds[s.ID] = s
	s.BindRoom(r.Key)
	r.count.Store(int64(len(r.members)))
	log.Debug().Str("module", "core.room").Str("room", r.Key.String()).Str("sid", string(s.ID)).Str("user", string(s.UserID)).Msg("member added")
	return nil
}

// RemoveMember drops the session's hold; the subject leaves with its last session.
// held is false when the room had no hold for this session. gone reports
// whether the subject is no longer a member.
func (r *Room) RemoveMember(s *Session) (held, gone bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.UnbindRoom(r.Key)
	holds, ok := r.members[s.UserID]
	if !ok {
		return false, false
	}
	if _, held = holds[s.ID]; !held {
		return false, false
	}
	delete(holds, s.ID)
	gone = len(holds) == 0
	if gone {
		delete(r.members, s.UserID)
	}
	r.count.Store(int64(len(r.members)))
	log.Debug().Str("module", "core.room").Str("room", r.Key.String()).Str("sid", string(s.ID)).Bool("subject_left", gone).Msg("member removed")
	return true, gone
}

func (r *Room) Has(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[s.UserID][s.ID]
	return ok
}

func (r *Room) HasSubject(id domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Empty must be called with the registry write lock held to be meaningful.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0
}

func (r *Room) Members() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// Recipients snapshots every member session except exclude, so delivery
// runs outside the lock.
func (r *Room) Recipients(exclude *Session) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.members))
	for _, holds := range r.members {
		for sid, s := range holds {
			if exclude != nil && sid == exclude.ID {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{Key: r.Key.String(), Type: r.Key.Type, MemberCount: r.MemberCount()}
}
