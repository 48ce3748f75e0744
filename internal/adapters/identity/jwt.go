package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skatehub/gateway/internal/domain"
)

var ErrNoSubject = errors.New("token has no subject")

// JWTVerifier checks HS256 tokens issued by the platform's auth service.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTVerifier enforces issuer and audience only when they are set.
func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

func (v *JWTVerifier) Verify(_ context.Context, tok string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return domain.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return domain.Identity{}, ErrNoSubject
	}
	return domain.Identity{Subject: sub, Claims: claims}, nil
}

// Sign issues a token the verifier accepts. Used by tests and local tooling.
func (v *JWTVerifier) Sign(sub, audience string, extra map[string]any, ttl time.Duration) (string, error) {
	if sub == "" {
		return "", ErrNoSubject
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	for k, val := range extra {
		claims[k] = val
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
