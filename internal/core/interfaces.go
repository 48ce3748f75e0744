package core

import (
	"errors"

	"github.com/skatehub/gateway/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrNoSignal     = errors.New("no signal connection")
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []*Session
}

// Deliver fans one frame out to every session, never blocking on a slow one.
func Deliver(sessions []*Session, f Frame) PublishResult {
	res := PublishResult{}
	for _, s := range sessions {
		if err := s.Send(f); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SentTo++
	}
	return res
}

type RoomInfo struct {
	Key         string          `json:"key"`
	Type        domain.RoomType `json:"type"`
	MemberCount int             `json:"member_count"`
}
