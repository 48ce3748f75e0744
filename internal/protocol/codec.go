package protocol

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/skatehub/gateway/internal/domain"
)

// Envelope is the frame shape on the wire in both directions.
type Envelope struct {
	Type Event           `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type Event `json:"type"`
	Data any   `json:"data,omitempty"`
}

func Encode(event Event, payload any) ([]byte, error) {
	b, err := json.Marshal(outbound{Type: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

// EncodeError builds the typed error event sent back to a sender. Only the
// outermost code and message go on the wire, never the cause.
func EncodeError(err error) []byte {
	p := ErrorPayload{Code: domain.CodeMalformedEventPayload, Message: "malformed event payload"}
	var de *domain.Error
	if errors.As(err, &de) {
		p = ErrorPayload{Code: de.Code, Message: de.Message}
	}
	b, _ := Encode(Error, p)
	return b
}
