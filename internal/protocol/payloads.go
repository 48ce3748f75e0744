package protocol

import (
	"time"

	"github.com/skatehub/gateway/internal/domain"
)

// RoomRef addresses a room; used by room:join, room:leave and typing events.
type RoomRef struct {
	RoomType domain.RoomType `json:"roomType" validate:"required,oneof=battle game spot global"`
	RoomID   string          `json:"roomId" validate:"required,max=128"`
}

func (r RoomRef) Key() domain.RoomKey { return domain.ResolveRoomKey(r.RoomType, r.RoomID) }

type BattleCreatePayload struct {
	OpponentID string `json:"opponentId,omitempty" validate:"omitempty,max=128"`
	SpotID     string `json:"spotId,omitempty" validate:"omitempty,max=128"`
}

type BattleRef struct {
	BattleID string `json:"battleId" validate:"required,max=128"`
}

type BattleVotePayload struct {
	BattleID  string `json:"battleId" validate:"required,max=128"`
	SubjectID string `json:"subjectId" validate:"required,max=128"`
	Vote      string `json:"vote" validate:"required,oneof=clean sketch redo"`
}

type BattleReadyPayload struct {
	BattleID string `json:"battleId" validate:"required,max=128"`
	Ready    bool   `json:"ready"`
}

type GameCreatePayload struct {
	SpotID  string   `json:"spotId,omitempty" validate:"omitempty,max=128"`
	Invited []string `json:"invited,omitempty" validate:"max=7,dive,required,max=128"`
}

type GameRef struct {
	GameID string `json:"gameId" validate:"required,max=128"`
}

type GameTrickPayload struct {
	GameID  string `json:"gameId" validate:"required,max=128"`
	Trick   string `json:"trick" validate:"required,max=64"`
	Landed  bool   `json:"landed"`
	VideoID string `json:"videoId,omitempty" validate:"omitempty,max=128"`
}

type GamePassPayload struct {
	GameID string `json:"gameId" validate:"required,max=128"`
}

type PresencePayload struct {
	Status string `json:"status" validate:"required,oneof=online away offline"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Outbound payloads.

type ErrorPayload struct {
	Code    domain.Code `json:"code"`
	Message string      `json:"message"`
}

type RoomStatePayload struct {
	RoomType domain.RoomType `json:"roomType"`
	RoomID   string          `json:"roomId"`
	Members  []domain.UserID `json:"members,omitempty"`
}

type MemberPayload struct {
	RoomType  domain.RoomType `json:"roomType"`
	RoomID    string          `json:"roomId"`
	SubjectID domain.UserID   `json:"subjectId"`
}

type BattleState string

const (
	BattleWaiting   BattleState = "waiting"
	BattleActive    BattleState = "active"
	BattleVoting    BattleState = "voting"
	BattleCompleted BattleState = "completed"
)

type BattleUpdatePayload struct {
	BattleID    string        `json:"battleId"`
	State       BattleState   `json:"state"`
	CurrentTurn domain.UserID `json:"currentTurn,omitempty"`
	RoundNumber int           `json:"roundNumber,omitempty"`
}

type BattleVoteCast struct {
	BattleVotePayload
	VoterID domain.UserID `json:"voterId"`
}

type BattleReadyCast struct {
	BattleReadyPayload
	SubjectID domain.UserID `json:"subjectId"`
}

type GameState string

const (
	GameWaiting GameState = "waiting"
	GameActive  GameState = "active"
)

type GameUpdatePayload struct {
	GameID  string          `json:"gameId"`
	State   GameState       `json:"state"`
	Players []domain.UserID `json:"players,omitempty"`
}

type GameTrickCast struct {
	GameTrickPayload
	SubjectID domain.UserID `json:"subjectId"`
}

type GamePassCast struct {
	GamePassPayload
	SubjectID domain.UserID `json:"subjectId"`
}

type PresenceUpdatePayload struct {
	SubjectID domain.UserID `json:"subjectId"`
	Status    string        `json:"status"`
	LastSeen  *time.Time    `json:"lastSeen,omitempty"`
}

type TypingUpdatePayload struct {
	RoomType  domain.RoomType `json:"roomType"`
	RoomID    string          `json:"roomId"`
	SubjectID domain.UserID   `json:"subjectId"`
	Typing    bool            `json:"typing"`
}

type NotificationPayload struct {
	Kind string         `json:"kind"`
	From domain.UserID  `json:"from,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

type PongPayload struct {
	Timestamp  int64 `json:"timestamp,omitempty"`
	ServerTime int64 `json:"serverTime"`
}
