package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/protocol"
)

const DefaultSweepInterval = 5 * time.Minute

// BroadcastObserver is told about every fan-out, for metrics.
type BroadcastObserver interface {
	ObserveBroadcast(t domain.RoomType, sent, dropped int)
}

type TypeStats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

type Stats struct {
	TotalRooms   int                           `json:"totalRooms"`
	TotalMembers int                           `json:"totalMembers"`
	ByType       map[domain.RoomType]TypeStats `json:"byType"`
}

// RoomRegistry is the in-memory catalog of rooms keyed by (type, id).
//
// Lock order is registry, then room, then session. A join keeps the
// registry read lock until the room has taken the member, and the sweep
// deletes under the write lock, so a room is never swept mid-join. Rooms are
// only ever deleted by the sweep.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]*core.Room

	capacities domain.Capacities
	conns      *Connections
	policy     Policy
	observer   BroadcastObserver
	interval   time.Duration
	now        func() time.Time
}

type RegistryOption func(*RoomRegistry)

func WithPolicy(p Policy) RegistryOption {
	return func(r *RoomRegistry) { r.policy = p }
}

func WithBroadcastObserver(o BroadcastObserver) RegistryOption {
	return func(r *RoomRegistry) { r.observer = o }
}

func WithSweepInterval(d time.Duration) RegistryOption {
	return func(r *RoomRegistry) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func NewRoomRegistry(caps domain.Capacities, conns *Connections, opts ...RegistryOption) *RoomRegistry {
	if caps == nil {
		caps = domain.DefaultCapacities()
	}
	if conns == nil {
		conns = NewConnections()
	}
	r := &RoomRegistry{
		rooms:      make(map[domain.RoomKey]*core.Room),
		capacities: caps,
		conns:      conns,
		policy:     DropPolicy{},
		interval:   DefaultSweepInterval,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RoomRegistry) Connections() *Connections { return r.conns }

func (r *RoomRegistry) Capacity(t domain.RoomType) int { return r.capacities.Of(t) }

// Join adds the session's subject to the room, creating it on first use.
// A full room returns (false, ErrRoomFull) and nothing changes. Joining a
// room the session is already in succeeds without growing the room.
func (r *RoomRegistry) Join(s *core.Session, t domain.RoomType, id string) (bool, error) {
	if !t.Valid() || id == "" {
		return false, domain.ErrMalformedRoomKey
	}
	key := domain.ResolveRoomKey(t, id)

	r.mu.RLock()
	room, ok := r.rooms[key]
	if ok {
		err := room.AddMember(s)
		r.mu.RUnlock()
		return r.joined(key, s, err)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[key]; !ok {
		room = core.NewRoom(key, r.capacities.Of(t), r.now())
		r.rooms[key] = room
		log.Debug().Str("module", "app.rooms").Str("room", key.String()).Int("capacity", room.Capacity()).Msg("room created")
	}
	return r.joined(key, s, room.AddMember(s))
}

func (r *RoomRegistry) joined(key domain.RoomKey, s *core.Session, err error) (bool, error) {
	if err != nil {
		log.Info().Err(err).Str("module", "app.rooms").Str("room", key.String()).Str("user", string(s.UserID)).Msg("join rejected")
		return false, err
	}
	log.Info().Str("module", "app.rooms").Str("room", key.String()).Str("sid", string(s.ID)).Str("user", string(s.UserID)).Msg("joined")
	return true, nil
}

// Leave drops the session from the room. It reports whether the subject is
// now gone from the room. The room itself stays until the next sweep.
func (r *RoomRegistry) Leave(s *core.Session, t domain.RoomType, id string) bool {
	return r.leave(s, domain.ResolveRoomKey(t, id))
}

func (r *RoomRegistry) leave(s *core.Session, key domain.RoomKey) bool {
	bound := s.InRoom(key)

	r.mu.RLock()
	room, ok := r.rooms[key]
	var held, gone bool
	if ok {
		held, gone = room.RemoveMember(s)
	}
	r.mu.RUnlock()

	switch {
	case !ok && bound:
		log.Error().Str("module", "app.rooms").Str("room", key.String()).Str("sid", string(s.ID)).Msg("session bound to a missing room, treating as left")
		s.UnbindRoom(key)
		return false
	case ok && bound && !held:
		log.Error().Str("module", "app.rooms").Str("room", key.String()).Str("sid", string(s.ID)).Msg("session bound to a room that does not hold it, treating as left")
		return false
	}
	if gone {
		log.Info().Str("module", "app.rooms").Str("room", key.String()).Str("user", string(s.UserID)).Msg("left")
	}
	return gone
}

// LeaveAll runs on disconnect. It returns the rooms the subject is no longer
// a member of, so callers can announce the departure.
func (r *RoomRegistry) LeaveAll(s *core.Session) []domain.RoomKey {
	var left []domain.RoomKey
	for _, key := range s.Rooms() {
		if r.leave(s, key) {
			left = append(left, key)
		}
	}
	return left
}

func (r *RoomRegistry) room(key domain.RoomKey) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	return room, ok
}

// IsMember reports whether this session holds a membership in the room.
func (r *RoomRegistry) IsMember(s *core.Session, key domain.RoomKey) bool {
	room, ok := r.room(key)
	return ok && room.Has(s)
}

func (r *RoomRegistry) HasSubject(key domain.RoomKey, uid domain.UserID) bool {
	room, ok := r.room(key)
	return ok && room.HasSubject(uid)
}

func (r *RoomRegistry) Members(t domain.RoomType, id string) []domain.UserID {
	room, ok := r.room(domain.ResolveRoomKey(t, id))
	if !ok {
		return nil
	}
	return room.Members()
}

func (r *RoomRegistry) MemberCount(t domain.RoomType, id string) int {
	room, ok := r.room(domain.ResolveRoomKey(t, id))
	if !ok {
		return 0
	}
	return room.MemberCount()
}

// Broadcast delivers the event to every member session except exclude.
// Slow or closed recipients are handed to the policy, never reported as an error.
func (r *RoomRegistry) Broadcast(t domain.RoomType, id string, event protocol.Event, payload any, exclude *core.Session) core.PublishResult {
	key := domain.ResolveRoomKey(t, id)
	room, ok := r.room(key)
	if !ok {
		return core.PublishResult{}
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("room", key.String()).Msg("broadcast encode")
		return core.PublishResult{}
	}

	res := core.Deliver(room.Recipients(exclude), frame)
	r.backpressure(key, res)
	log.Debug().Str("module", "app.rooms").Str("room", key.String()).Str("event", string(event)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// SendToSubject reaches every live connection of a subject, in a room or not.
func (r *RoomRegistry) SendToSubject(uid domain.UserID, event protocol.Event, payload any) core.PublishResult {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("user", string(uid)).Msg("direct encode")
		return core.PublishResult{}
	}
	res := core.Deliver(r.conns.SessionsOf(uid), frame)
	log.Debug().Str("module", "app.rooms").Str("user", string(uid)).Str("event", string(event)).Int("sent_to", res.SentTo).Msg("direct send")
	return res
}

func (r *RoomRegistry) backpressure(key domain.RoomKey, res core.PublishResult) {
	if r.observer != nil {
		r.observer.ObserveBroadcast(key.Type, res.SentTo, len(res.Dropped))
	}
	if r.policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch r.policy.OnBackPressure(key, slow) {
		case KickMember:
			log.Warn().Str("module", "app.rooms").Str("room", key.String()).Str("sid", string(slow.ID)).Msg("kicking slow member")
			r.conns.Cancel(slow.ID)
		case DropFrame, NoAction:
		}
	}
}

// SweepEmptyRooms deletes every room without members and returns how many.
func (r *RoomRegistry) SweepEmptyRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, room := range r.rooms {
		if room.Empty() {
			delete(r.rooms, key)
			n++
		}
	}
	return n
}

// Run sweeps on the configured interval until ctx is done.
func (r *RoomRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.SweepEmptyRooms(); n > 0 {
				log.Info().Str("module", "app.rooms").Int("removed", n).Msg("swept empty rooms")
			}
		}
	}
}

// Stats reads atomic member counts and never takes a room lock.
func (r *RoomRegistry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{ByType: make(map[domain.RoomType]TypeStats)}
	for key, room := range r.rooms {
		n := room.MemberCount()
		ts := st.ByType[key.Type]
		ts.Rooms++
		ts.Members += n
		st.ByType[key.Type] = ts
		st.TotalRooms++
		st.TotalMembers += n
	}
	return st
}

func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.Info())
	}
	return out
}
