package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/metrics"
)

type staticStats struct{ st app.Stats }

func (s staticStats) Stats() app.Stats { return s.st }

type staticConns struct{ sessions, subjects int }

func (c staticConns) Count() (int, int) { return c.sessions, c.subjects }

func TestAdmissionAndBroadcastCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveAdmission("", 2*time.Millisecond)
	m.ObserveAdmission(domain.CodeRateLimited, time.Millisecond)
	m.ObserveAdmission(domain.CodeRateLimited, time.Millisecond)
	m.ObserveBroadcast(domain.RoomBattle, 2, 1)
	m.ObserveBroadcast(domain.RoomBattle, 1, 0)

	expected := `
# HELP skate_gateway_admissions_total Connection attempts by outcome.
# TYPE skate_gateway_admissions_total counter
skate_gateway_admissions_total{outcome="RATE_LIMITED"} 2
skate_gateway_admissions_total{outcome="admitted"} 1
# HELP skate_gateway_broadcast_frames_total Frames fanned out to room members by result.
# TYPE skate_gateway_broadcast_frames_total counter
skate_gateway_broadcast_frames_total{result="dropped",room_type="battle"} 1
skate_gateway_broadcast_frames_total{result="sent",room_type="battle"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"skate_gateway_admissions_total", "skate_gateway_broadcast_frames_total"))
}

func TestRoomGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.WatchRooms(staticStats{st: app.Stats{
		TotalRooms:   3,
		TotalMembers: 5,
		ByType: map[domain.RoomType]app.TypeStats{
			domain.RoomGlobal: {Rooms: 1, Members: 4},
			domain.RoomBattle: {Rooms: 2, Members: 1},
		},
	}}, staticConns{sessions: 5, subjects: 4})

	n, err := testutil.GatherAndCount(reg, "skate_gateway_rooms", "skate_gateway_room_members")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	expected := `
# HELP skate_gateway_sessions Open connections.
# TYPE skate_gateway_sessions gauge
skate_gateway_sessions 5
# HELP skate_gateway_subjects Distinct connected users.
# TYPE skate_gateway_subjects gauge
skate_gateway_subjects 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"skate_gateway_sessions", "skate_gateway_subjects"))
}
