package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeRateLimited            Code = "RATE_LIMITED"
	CodeAuthenticationRequired Code = "AUTHENTICATION_REQUIRED"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeAccountInactive        Code = "ACCOUNT_INACTIVE"
	CodeRoomFull               Code = "ROOM_FULL"
	CodeMalformedRoomKey       Code = "MALFORMED_ROOM_KEY"
	CodeMalformedEventPayload  Code = "MALFORMED_EVENT_PAYLOAD"
	CodeNotInRoom              Code = "NOT_IN_ROOM"
)

var (
	ErrRateLimited            = New(CodeRateLimited, "too many connection attempts")
	ErrAuthenticationRequired = New(CodeAuthenticationRequired, "authentication required")
	ErrInvalidToken           = New(CodeInvalidToken, "invalid token")
	ErrUserNotFound           = New(CodeUserNotFound, "user not found")
	ErrAccountInactive        = New(CodeAccountInactive, "account inactive")
	ErrRoomFull               = New(CodeRoomFull, "room is full")
	ErrMalformedRoomKey       = New(CodeMalformedRoomKey, "malformed room key")
	ErrMalformedEventPayload  = New(CodeMalformedEventPayload, "malformed event payload")
	ErrNotInRoom              = New(CodeNotInRoom, "not a member of this room")
)

// Error carries a stable code for clients plus an optional cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Public collapses admission failures that would let a caller probe accounts.
func Public(err error) *Error {
	code, ok := CodeOf(err)
	if !ok {
		return New(CodeInvalidToken, "connection rejected")
	}
	switch code {
	case CodeUserNotFound:
		code = CodeInvalidToken
	}
	return New(code, "connection rejected")
}
