package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cinelog/internal/platform/config"
	"cinelog/internal/realtime/registry"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/middleware/auth"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenTable authenticates by looking the bearer token up in a map.
type tokenTable map[string]auth.Decision

func (t tokenTable) AuthenticateHandshake(r *http.Request) auth.Decision {
	token, present := auth.BearerToken(r)
	if !present {
		return auth.Decision{Reason: auth.ReasonMissingToken}
	}
	if token == "" {
		return auth.Decision{Reason: auth.ReasonTokenMalformed}
	}
	if d, ok := t[token]; ok {
		return d
	}
	return auth.Decision{Reason: auth.ReasonTokenMalformed}
}

type fixture struct {
	server   *httptest.Server
	registry *registry.Registry
	alice    id.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(logger, nil)
	alice := id.NewUserID()

	tokens := tokenTable{
		"alice-token": {Identity: &auth.Identity{UserID: alice, Username: "alice"}, Reason: auth.ReasonNone},
		"ghost-token": {Reason: auth.ReasonUserNotFound},
		"stale-token": {Reason: auth.ReasonTokenExpired},
		"boom-token":  {Reason: auth.ReasonInternal, Err: errors.New("db down")},
	}
	h := New(tokens, reg, logger, config.Realtime{
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
		ReadLimit:    4096,
	})

	r := chi.NewRouter()
	h.Register(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &fixture{server: server, registry: reg, alice: alice}
}

func (f *fixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	if token == "" {
		return f.dialAuthorization(t, "")
	}
	return f.dialAuthorization(t, "Bearer "+token)
}

// dialAuthorization sends authorization verbatim; empty omits the header.
func (f *fixture) dialAuthorization(t *testing.T, authorization string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/notifications"
	header := http.Header{}
	if authorization != "" {
		header.Set("Authorization", authorization)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr
}

func TestHandshake_Rejections(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name          string
		authorization string
		wantCode      int
		wantReason    string
	}{
		{"no header", "", CloseUnauthorized, ReasonHeaderRequired},
		{"basic scheme", "Basic abc", CloseUnauthorized, ReasonInvalidToken},
		{"no scheme", "justatoken", CloseUnauthorized, ReasonInvalidToken},
		{"bearer without token", "Bearer", CloseUnauthorized, ReasonInvalidToken},
		{"garbage token", "Bearer garbage", CloseUnauthorized, ReasonInvalidToken},
		{"expired token", "Bearer stale-token", CloseUnauthorized, ReasonInvalidToken},
		{"unknown user", "Bearer ghost-token", CloseUnauthorized, ReasonUserNotFound},
		{"lookup failure", "Bearer boom-token", websocket.CloseInternalServerErr, "Internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := f.dialAuthorization(t, tc.authorization)
			closeErr := readClose(t, conn)
			assert.Equal(t, tc.wantCode, closeErr.Code)
			assert.Equal(t, tc.wantReason, closeErr.Text)
		})
	}
	assert.Zero(t, f.registry.Len(), "rejected sockets are never registered")
}

func TestSocket_ReceivesNotifications(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "alice-token")

	require.Eventually(t, func() bool { return f.registry.IsConnected(f.alice) }, 2*time.Second, 10*time.Millisecond)

	f.registry.Send(context.Background(), f.alice, registry.Message{Message: "bob followed you."})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]string
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, map[string]string{"message": "bob followed you."}, got)
}

func TestSocket_ClientCloseReleasesEntry(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "alice-token")
	require.Eventually(t, func() bool { return f.registry.IsConnected(f.alice) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second)))

	assert.Eventually(t, func() bool { return f.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_NewerConnectionSupersedesOlder(t *testing.T) {
	f := newFixture(t)
	first := f.dial(t, "alice-token")
	require.Eventually(t, func() bool { return f.registry.IsConnected(f.alice) }, 2*time.Second, 10*time.Millisecond)

	second := f.dial(t, "alice-token")

	closeErr := readClose(t, first)
	assert.Equal(t, registry.CloseSuperseded, closeErr.Code)
	assert.Equal(t, registry.CloseSupersededReason, closeErr.Text)

	f.registry.Send(context.Background(), f.alice, registry.Message{Message: "to the newest"})
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got registry.Message
	require.NoError(t, second.ReadJSON(&got))
	assert.Equal(t, "to the newest", got.Message)
	assert.Equal(t, 1, f.registry.Len())
}

func TestCloseFor(t *testing.T) {
	code, reason := CloseFor(auth.ReasonTokenSignatureInvalid)
	assert.Equal(t, CloseUnauthorized, code)
	assert.Equal(t, ReasonInvalidToken, reason)

	code, reason = CloseFor(auth.ReasonMissingToken)
	assert.Equal(t, CloseUnauthorized, code)
	assert.Equal(t, ReasonHeaderRequired, reason)
}
