package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skatehub/gateway/internal/domain"
)

func TestRoomKeyRoundTrip(t *testing.T) {
	tests := []struct {
		typ domain.RoomType
		id  string
	}{
		{domain.RoomBattle, "b-1"},
		{domain.RoomGame, "9f1c"},
		{domain.RoomSpot, "venice:pier"},
		{domain.RoomGlobal, "lobby"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.id, func(t *testing.T) {
			key := domain.ResolveRoomKey(tt.typ, tt.id)
			parsed, err := domain.ParseRoomKey(key.String())
			require.NoError(t, err)
			assert.Equal(t, key, parsed)
		})
	}
}

func TestParseRoomKeyMalformed(t *testing.T) {
	for _, s := range []string{"", "battle", "battle:", ":b-1", "arena:b-1", ":"} {
		t.Run(s, func(t *testing.T) {
			_, err := domain.ParseRoomKey(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedRoomKey))
		})
	}
}

func TestCapacities(t *testing.T) {
	caps := domain.DefaultCapacities()
	assert.Equal(t, 2, caps.Of(domain.RoomBattle))
	assert.Equal(t, 8, caps.Of(domain.RoomGame))
	assert.Equal(t, 100, caps.Of(domain.RoomSpot))
	assert.Equal(t, domain.Unbounded, caps.Of(domain.RoomGlobal))
	assert.Equal(t, domain.Unbounded, domain.Capacities{}.Of(domain.RoomBattle))
}
