package protocol

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/skatehub/gateway/internal/domain"
)

// Message is a validated inbound event. Payload is a pointer to the
// event's payload struct, e.g. *RoomRef for room:join.
type Message struct {
	Type    Event
	Payload any
}

// Router decodes inbound frames and validates them structurally.
// It knows nothing about rooms; handlers are registered by the transport.
type Router struct {
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Decode returns MALFORMED_EVENT_PAYLOAD for bad JSON, unknown events and
// payloads that fail validation.
func (r *Router) Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, domain.Wrap(domain.CodeMalformedEventPayload, "invalid json", err)
	}
	ctor, ok := inbound[env.Type]
	if !ok {
		return Message{Type: env.Type}, domain.Wrap(domain.CodeMalformedEventPayload, "unknown event", fmt.Errorf("%q", env.Type))
	}
	payload := ctor()
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return Message{Type: env.Type}, domain.Wrap(domain.CodeMalformedEventPayload, "invalid payload", err)
		}
	}
	if err := r.validate.Struct(payload); err != nil {
		return Message{Type: env.Type}, domain.Wrap(domain.CodeMalformedEventPayload, "invalid payload", err)
	}
	return Message{Type: env.Type, Payload: payload}, nil
}
