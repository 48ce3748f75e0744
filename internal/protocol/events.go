// Package protocol is the wire contract between a connection and the gateway:
// the closed set of event names, their payload shapes and structural validation.
package protocol

type Event string

// Inbound, client to server.
const (
	RoomJoin       Event = "room:join"
	RoomLeave      Event = "room:leave"
	BattleCreate   Event = "battle:create"
	BattleJoin     Event = "battle:join"
	BattleVote     Event = "battle:vote"
	BattleReady    Event = "battle:ready"
	GameCreate     Event = "game:create"
	GameJoin       Event = "game:join"
	GameTrick      Event = "game:trick"
	GamePass       Event = "game:pass"
	PresenceUpdate Event = "presence:update"
	TypingStart    Event = "typing:start"
	TypingStop     Event = "typing:stop"
	Ping           Event = "ping"
)

// Outbound, server to client. Relayed game and battle actions reuse the
// inbound names.
const (
	RoomJoined       Event = "room:joined"
	RoomLeft         Event = "room:left"
	RoomMemberJoined Event = "room:member_joined"
	RoomMemberLeft   Event = "room:member_left"
	BattleUpdate     Event = "battle:update"
	GameUpdate       Event = "game:update"
	TypingUpdate     Event = "typing:update"
	Notification     Event = "notification"
	Error            Event = "error"
	Pong             Event = "pong"
)

// inbound maps every accepted client event to a constructor of its payload.
var inbound = map[Event]func() any{
	RoomJoin:       func() any { return &RoomRef{} },
	RoomLeave:      func() any { return &RoomRef{} },
	BattleCreate:   func() any { return &BattleCreatePayload{} },
	BattleJoin:     func() any { return &BattleRef{} },
	BattleVote:     func() any { return &BattleVotePayload{} },
	BattleReady:    func() any { return &BattleReadyPayload{} },
	GameCreate:     func() any { return &GameCreatePayload{} },
	GameJoin:       func() any { return &GameRef{} },
	GameTrick:      func() any { return &GameTrickPayload{} },
	GamePass:       func() any { return &GamePassPayload{} },
	PresenceUpdate: func() any { return &PresencePayload{} },
	TypingStart:    func() any { return &RoomRef{} },
	TypingStop:     func() any { return &RoomRef{} },
	Ping:           func() any { return &PingPayload{} },
}

func (e Event) Inbound() bool {
	_, ok := inbound[e]
	return ok
}
