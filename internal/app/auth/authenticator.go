// Package auth gates every connection attempt: admission, credential
// verification and user resolution, in that order. It never touches rooms.
package auth

//go:generate mockgen -destination=mocks/identity.go -package=mocks . TokenVerifier,UserLookup

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/core"
	"github.com/skatehub/gateway/internal/domain"
)

const maxTokenLen = 8192

// TokenVerifier checks a bearer credential with the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// UserLookup resolves a verified subject to the application user record.
// ok is false when no record exists.
type UserLookup interface {
	LookupUser(ctx context.Context, subject string) (user domain.User, ok bool, err error)
}

type Admitter interface {
	Allow(key string) bool
}

// Observer receives the outcome code of each attempt; "" means admitted.
type Observer interface {
	ObserveAdmission(code domain.Code, elapsed time.Duration)
}

type Attempt struct {
	Token      string
	SourceAddr string
	DeviceID   string
}

type Authenticator struct {
	limiter  Admitter
	verifier TokenVerifier
	users    UserLookup
	observer Observer
	now      func() time.Time
}

type Option func(*Authenticator)

func WithObserver(o Observer) Option {
	return func(a *Authenticator) { a.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func New(limiter Admitter, verifier TokenVerifier, users UserLookup, opts ...Option) *Authenticator {
	a := &Authenticator{
		limiter:  limiter,
		verifier: verifier,
		users:    users,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Authenticate returns a Session with an empty room set, or a *domain.Error
// naming the gate that failed.
func (a *Authenticator) Authenticate(ctx context.Context, at Attempt) (*core.Session, error) {
	start := a.now()
	logger := log.With().Str("module", "app.auth").Str("source", at.SourceAddr).Logger()

	sess, err := a.authenticate(ctx, at)
	elapsed := a.now().Sub(start)
	if err != nil {
		code, _ := domain.CodeOf(err)
		ev := logger.Warn()
		if code == domain.CodeUserNotFound && !isNotFound(err) {
			ev = logger.Error()
		}
		ev.Err(err).Str("reason", string(code)).Dur("latency", elapsed).Msg("connection rejected")
		a.observe(code, elapsed)
		return nil, err
	}

	logger.Info().
		Str("user", string(sess.UserID)).
		Str("sid", string(sess.ID)).
		Str("device", sess.DeviceID).
		Strs("roles", sess.Roles).
		Dur("latency", elapsed).
		Msg("connection authenticated")
	a.observe("", elapsed)
	return sess, nil
}

func (a *Authenticator) authenticate(ctx context.Context, at Attempt) (*core.Session, error) {
	if !a.limiter.Allow(at.SourceAddr) {
		return nil, domain.ErrRateLimited
	}

	token := strings.TrimSpace(at.Token)
	if token == "" || len(token) > maxTokenLen || strings.ContainsAny(token, " \t\r\n") {
		return nil, domain.ErrAuthenticationRequired
	}

	ident, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvalidToken, "invalid token", err)
	}
	if ident.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	user, ok, err := a.users.LookupUser(ctx, ident.Subject)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUserNotFound, "user lookup failed", err)
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	return core.NewSession(user, ident, at.DeviceID, a.now()), nil
}

func (a *Authenticator) observe(code domain.Code, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveAdmission(code, elapsed)
	}
}

// isNotFound separates a missing record from a failing store in the logs.
func isNotFound(err error) bool {
	de, ok := err.(*domain.Error)
	return ok && de.Err == nil
}
