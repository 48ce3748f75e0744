package http_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gatewayhttp "github.com/skatehub/gateway/internal/adapters/http"
	"github.com/skatehub/gateway/internal/adapters/identity"
	"github.com/skatehub/gateway/internal/adapters/signal"
	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/app/admission"
	"github.com/skatehub/gateway/internal/app/auth"
	"github.com/skatehub/gateway/internal/app/orch"
	"github.com/skatehub/gateway/internal/config"
	"github.com/skatehub/gateway/internal/domain"
	"github.com/skatehub/gateway/internal/metrics"
	"github.com/skatehub/gateway/internal/protocol"
)

type testGateway struct {
	srv   *httptest.Server
	jwt   *identity.JWTVerifier
	rooms *app.RoomRegistry
}

func newGateway(t *testing.T, ceiling int, trustedProxies ...string) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := identity.NewDirectory(
		domain.User{ID: "a", ExternalID: "ext-a", Username: "alex", Active: true},
		domain.User{ID: "b", ExternalID: "ext-b", Username: "bea", Active: true},
		domain.User{ID: "off", ExternalID: "ext-off", Username: "gone", Active: false},
	)
	verifier := identity.NewJWTVerifier("s3cret", "", "")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rooms := app.NewRoomRegistry(nil, nil, app.WithBroadcastObserver(m))
	m.WatchRooms(rooms, rooms.Connections())

	authn := auth.New(admission.NewLimiter(ceiling, time.Minute), verifier, dir, auth.WithObserver(m))
	ctl := signal.NewSignalWSController(orch.New(rooms), authn, signal.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{Mode: "test", Secret: "cookie-secret-for-tests-only-123", TrustedProxies: trustedProxies}
	srv := httptest.NewServer(gatewayhttp.SetupRouter(ctx, cfg, ctl, rooms, reg))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testGateway{srv: srv, jwt: verifier, rooms: rooms}
}

func (g *testGateway) token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := g.jwt.Sign(sub, "", nil, time.Hour)
	require.NoError(t, err)
	return tok
}

func (g *testGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/api/ws"
}

func (g *testGateway) dial(t *testing.T, sub string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+g.token(t, sub))
	ws, resp, err := websocket.DefaultDialer.Dial(g.wsURL(), h)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event protocol.Event, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

// readUntil skips other events until the wanted one arrives.
func readUntil(t *testing.T, ws *websocket.Conn, event protocol.Event) protocol.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == event {
			return env
		}
	}
}

func TestHealthz(t *testing.T) {
	g := newGateway(t, 10)
	resp, err := http.Get(g.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandshakeRejectedBeforeUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		query  func(g *testGateway, t *testing.T) string
		status int
		code   domain.Code
	}{
		{"no credential", func(*testGateway, *testing.T) string { return "" }, http.StatusUnauthorized, domain.CodeAuthenticationRequired},
		{"forged token", func(*testGateway, *testing.T) string { return "?token=abc.def.ghi" }, http.StatusUnauthorized, domain.CodeInvalidToken},
		{"unknown user", func(g *testGateway, t *testing.T) string { return "?token=" + g.token(t, "ext-nobody") }, http.StatusUnauthorized, domain.CodeInvalidToken},
		{"inactive account", func(g *testGateway, t *testing.T) string { return "?token=" + g.token(t, "ext-off") }, http.StatusForbidden, domain.CodeAccountInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, 10)
			_, resp, err := websocket.DefaultDialer.Dial(g.wsURL()+tt.query(g, t), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body struct {
				Code    domain.Code `json:"code"`
				Message string      `json:"message"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Zero(t, g.rooms.Stats().TotalMembers)
		})
	}
}

func TestHandshakeRateLimited(t *testing.T) {
	g := newGateway(t, 3)
	endpoint := g.srv.URL + "/api/ws"
	for i := 0; i < 3; i++ {
		resp, err := http.Get(endpoint + "?token=bad")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, err := http.Get(endpoint + "?token=" + g.token(t, "ext-a"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHandshakeRateLimitIgnoresForwardedFor(t *testing.T) {
	tests := []struct {
		name        string
		trusted     []string
		wantLimited int
	}{
		{"untrusted peer", nil, 17},
		{"trusted proxy", []string{"127.0.0.1", "::1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, 3, tt.trusted...)
			limited := 0
			for i := 0; i < 20; i++ {
				req, err := http.NewRequest(http.MethodGet, g.srv.URL+"/api/ws?token=bad", nil)
				require.NoError(t, err)
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				resp.Body.Close()
				if resp.StatusCode == http.StatusTooManyRequests {
					limited++
				}
			}
			assert.Equal(t, tt.wantLimited, limited)
		})
	}
}

func TestRoomFlowOverWebSocket(t *testing.T) {
	g := newGateway(t, 10)

	a := g.dial(t, "ext-a")
	readUntil(t, a, protocol.RoomJoined)

	b := g.dial(t, "ext-b")
	readUntil(t, b, protocol.RoomJoined)
	env := readUntil(t, a, protocol.PresenceUpdate)
	assert.JSONEq(t, `{"subjectId":"b","status":"online"}`, string(env.Data))

	spot := protocol.RoomRef{RoomType: domain.RoomSpot, RoomID: "venice"}
	send(t, a, protocol.RoomJoin, spot)
	readUntil(t, a, protocol.RoomJoined)
	send(t, b, protocol.RoomJoin, spot)
	joined := readUntil(t, b, protocol.RoomJoined)
	var state protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(joined.Data, &state))
	assert.ElementsMatch(t, []domain.UserID{"a", "b"}, state.Members)
	readUntil(t, a, protocol.RoomMemberJoined)

	send(t, b, protocol.TypingStart, spot)
	env = readUntil(t, a, protocol.TypingUpdate)
	assert.JSONEq(t, `{"roomType":"spot","roomId":"venice","subjectId":"b","typing":true}`, string(env.Data))

	send(t, a, protocol.Ping, protocol.PingPayload{Timestamp: 42})
	env = readUntil(t, a, protocol.Pong)
	var pong protocol.PongPayload
	require.NoError(t, json.Unmarshal(env.Data, &pong))
	assert.EqualValues(t, 42, pong.Timestamp)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"room:join","data":{"roomType":"arena"}}`)))
	env = readUntil(t, a, protocol.Error)
	assert.Contains(t, string(env.Data), string(domain.CodeMalformedEventPayload))

	send(t, a, protocol.BattleVote, protocol.BattleVotePayload{BattleID: "nope", SubjectID: "b", Vote: "clean"})
	env = readUntil(t, a, protocol.Error)
	assert.Contains(t, string(env.Data), string(domain.CodeNotInRoom))

	resp, err := http.Get(g.srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats struct {
		TotalRooms   int `json:"totalRooms"`
		TotalMembers int `json:"totalMembers"`
		Sessions     int `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 4, stats.TotalMembers)
	assert.Equal(t, 2, stats.Sessions)

	require.NoError(t, b.Close())
	env = readUntil(t, a, protocol.RoomMemberLeft)
	assert.Contains(t, string(env.Data), `"subjectId":"b"`)
	assert.Eventually(t, func() bool {
		sessions, _ := g.rooms.Connections().Count()
		return sessions == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRoomsAndMetricsEndpoints(t *testing.T) {
	g := newGateway(t, 10)
	a := g.dial(t, "ext-a")
	readUntil(t, a, protocol.RoomJoined)

	resp, err := http.Get(g.srv.URL + "/api/rooms?type=global")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list struct {
		Count int `json:"count"`
		Rooms []struct {
			Key         string `json:"key"`
			MemberCount int    `json:"member_count"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "global:lobby", list.Rooms[0].Key)
	assert.Equal(t, 1, list.Rooms[0].MemberCount)

	bad, err := http.Get(g.srv.URL + "/api/rooms?type=arena")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	mresp, err := http.Get(g.srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `skate_gateway_admissions_total{outcome="admitted"} 1`)
	assert.Contains(t, buf.String(), `skate_gateway_rooms{room_type="global"} 1`)
}
