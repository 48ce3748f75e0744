package domain

import (
	"fmt"
	"strings"
)

type RoomType string

const (
	RoomBattle RoomType = "battle"
	RoomGame   RoomType = "game"
	RoomSpot   RoomType = "spot"
	RoomGlobal RoomType = "global"
)

// Unbounded marks a room type that never rejects a join.
const Unbounded = -1

const keySeparator = ":"

func (t RoomType) Valid() bool {
	switch t {
	case RoomBattle, RoomGame, RoomSpot, RoomGlobal:
		return true
	}
	return false
}

// RoomKey identifies a room. Its string form is "type:id".
type RoomKey struct {
	Type RoomType
	ID   string
}

func ResolveRoomKey(t RoomType, id string) RoomKey {
	return RoomKey{Type: t, ID: id}
}

func (k RoomKey) String() string {
	return string(k.Type) + keySeparator + k.ID
}

// ParseRoomKey splits on the first separator only, so ids may contain ':'.
func ParseRoomKey(s string) (RoomKey, error) {
	t, id, ok := strings.Cut(s, keySeparator)
	if !ok || t == "" || id == "" {
		return RoomKey{}, Wrap(CodeMalformedRoomKey, "malformed room key", fmt.Errorf("%q", s))
	}
	rt := RoomType(t)
	if !rt.Valid() {
		return RoomKey{}, Wrap(CodeMalformedRoomKey, "unknown room type", fmt.Errorf("%q", t))
	}
	return RoomKey{Type: rt, ID: id}, nil
}

// Capacities is the per-type member ceiling. Missing types are unbounded.
type Capacities map[RoomType]int

func DefaultCapacities() Capacities {
	return Capacities{
		RoomBattle: 2,
		RoomGame:   8,
		RoomSpot:   100,
		RoomGlobal: Unbounded,
	}
}

func (c Capacities) Of(t RoomType) int {
	if n, ok := c[t]; ok && n >= 0 {
		return n
	}
	return Unbounded
}
