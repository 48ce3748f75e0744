package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skatehub/gateway/internal/app/admission"
	"github.com/skatehub/gateway/internal/app/auth"
	"github.com/skatehub/gateway/internal/app/auth/mocks"
	"github.com/skatehub/gateway/internal/domain"
)

type recorder struct {
	codes []domain.Code
}

func (r *recorder) ObserveAdmission(code domain.Code, _ time.Duration) {
	r.codes = append(r.codes, code)
}

func setup(t *testing.T, ceiling int) (*auth.Authenticator, *mocks.MockTokenVerifier, *mocks.MockUserLookup, *recorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	users := mocks.NewMockUserLookup(ctrl)
	rec := &recorder{}
	a := auth.New(admission.NewLimiter(ceiling, time.Minute), verifier, users, auth.WithObserver(rec))
	return a, verifier, users, rec
}

func TestAuthenticateActiveThenInactive(t *testing.T) {
	a, verifier, users, rec := setup(t, 10)
	ctx := context.Background()
	ident := domain.Identity{Subject: "ext-42", Claims: map[string]any{"sub": "ext-42", "admin": true}}
	user := domain.User{ID: "u-42", ExternalID: "ext-42", Username: "tony", Active: true}

	verifier.EXPECT().Verify(gomock.Any(), "good-token").Return(ident, nil).Times(2)
	gomock.InOrder(
		users.EXPECT().LookupUser(gomock.Any(), "ext-42").Return(user, true, nil),
		users.EXPECT().LookupUser(gomock.Any(), "ext-42").Return(domain.User{ID: "u-42", ExternalID: "ext-42", Active: false}, true, nil),
	)

	sess, err := a.Authenticate(ctx, auth.Attempt{Token: "good-token", SourceAddr: "10.0.0.1", DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-42"), sess.UserID)
	assert.Equal(t, "ext-42", sess.ExternalID)
	assert.Equal(t, "dev-1", sess.DeviceID)
	assert.True(t, sess.HasRole(domain.RoleAdmin))
	assert.Empty(t, sess.Rooms())
	assert.NotEmpty(t, sess.ID)

	_, err = a.Authenticate(ctx, auth.Attempt{Token: "good-token", SourceAddr: "10.0.0.1"})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
	assert.Equal(t, []domain.Code{"", domain.CodeAccountInactive}, rec.codes)
}

func TestAuthenticateRejections(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		expect func(v *mocks.MockTokenVerifier, u *mocks.MockUserLookup)
		want   error
	}{
		{
			name:  "missing token",
			token: "",
			want:  domain.ErrAuthenticationRequired,
		},
		{
			name:  "whitespace token",
			token: "   ",
			want:  domain.ErrAuthenticationRequired,
		},
		{
			name:  "token with inner space",
			token: "abc def",
			want:  domain.ErrAuthenticationRequired,
		},
		{
			name:  "oversized token",
			token: strings.Repeat("a", 9000),
			want:  domain.ErrAuthenticationRequired,
		},
		{
			name:  "verifier rejects",
			token: "forged",
			expect: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserLookup) {
				v.EXPECT().Verify(gomock.Any(), "forged").Return(domain.Identity{}, errors.New("signature is invalid"))
			},
			want: domain.ErrInvalidToken,
		},
		{
			name:  "no subject",
			token: "anon",
			expect: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserLookup) {
				v.EXPECT().Verify(gomock.Any(), "anon").Return(domain.Identity{}, nil)
			},
			want: domain.ErrInvalidToken,
		},
		{
			name:  "unknown user",
			token: "orphan",
			expect: func(v *mocks.MockTokenVerifier, u *mocks.MockUserLookup) {
				v.EXPECT().Verify(gomock.Any(), "orphan").Return(domain.Identity{Subject: "ext-0"}, nil)
				u.EXPECT().LookupUser(gomock.Any(), "ext-0").Return(domain.User{}, false, nil)
			},
			want: domain.ErrUserNotFound,
		},
		{
			name:  "store failure",
			token: "db-down",
			expect: func(v *mocks.MockTokenVerifier, u *mocks.MockUserLookup) {
				v.EXPECT().Verify(gomock.Any(), "db-down").Return(domain.Identity{Subject: "ext-1"}, nil)
				u.EXPECT().LookupUser(gomock.Any(), "ext-1").Return(domain.User{}, false, errors.New("connection refused"))
			},
			want: domain.ErrUserNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, verifier, users, _ := setup(t, 10)
			if tt.expect != nil {
				tt.expect(verifier, users)
			}
			sess, err := a.Authenticate(context.Background(), auth.Attempt{Token: tt.token, SourceAddr: "10.0.0.9"})
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticateRateLimitedBeforeVerify(t *testing.T) {
	a, verifier, users, rec := setup(t, 2)
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(domain.Identity{Subject: "ext-1"}, nil).Times(2)
	users.EXPECT().LookupUser(gomock.Any(), "ext-1").Return(domain.User{ID: "u-1", Active: true}, true, nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := a.Authenticate(context.Background(), auth.Attempt{Token: "t", SourceAddr: "10.0.0.1"})
		require.NoError(t, err)
	}
	_, err := a.Authenticate(context.Background(), auth.Attempt{Token: "t", SourceAddr: "10.0.0.1"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.CodeRateLimited, rec.codes[len(rec.codes)-1])

	// failed attempts spend the window as well
	for i := 0; i < 2; i++ {
		_, err = a.Authenticate(context.Background(), auth.Attempt{Token: "", SourceAddr: "10.0.0.2"})
		assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
	}
	_, err = a.Authenticate(context.Background(), auth.Attempt{Token: "", SourceAddr: "10.0.0.2"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
