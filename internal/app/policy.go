package app

import (
	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose send buffer was full
// during a broadcast. The broadcast itself never fails.
type Policy interface {
	OnBackPressure(key domain.RoomKey, member *core.Session) BackpressureAction
}

// DropPolicy loses the frame for the slow member and keeps it connected.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomKey, *core.Session) BackpressureAction {
	return DropFrame
}

// KickPolicy disconnects members that cannot keep up.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomKey, *core.Session) BackpressureAction {
	return KickMember
}

func PolicyByName(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
