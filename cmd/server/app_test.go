package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelog/internal/platform/config"
	"cinelog/internal/platform/metrics"
	"cinelog/internal/realtime/registry"
	usermodels "cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	audit "cinelog/pkg/platform/audit"
	authmw "cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/testutil"
)

type inbox struct {
	mu     sync.Mutex
	got    []registry.Message
	closes []int
}

func (c *inbox) Send(_ context.Context, msg registry.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, msg)
	return nil
}

func (c *inbox) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, code)
	return nil
}

func (c *inbox) messages() []registry.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]registry.Message(nil), c.got...)
}

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Config{
		Auth: config.Auth{
			SecretKey:       "app-test-secret",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: time.Hour,
		},
		Realtime: config.Realtime{WriteTimeout: time.Second, PingInterval: time.Minute, ReadLimit: 4096},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newApp(cfg, log, metrics.NewRegistry(), deps{
		stores:  buildStores(nil),
		auditor: audit.Nop{},
	})
}

func signUp(t *testing.T, a *app, name string) id.UserID {
	t.Helper()
	rec := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]any{
		"username": name, "password": name + "-pw", "age": 25, "gender": "male",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID, err := id.ParseUserID(testutil.UnmarshalResponse[usermodels.CreateUserResponse](t, rec).ID)
	require.NoError(t, err)
	return userID
}

func login(t *testing.T, a *app, name string) string {
	t.Helper()
	rec := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/users/login",
		usermodels.LoginRequest{Username: name, Password: name + "-pw"}))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	cookie := testutil.CookieByName(rec, authmw.AccessTokenCookie)
	require.NotNil(t, cookie)
	return cookie.Value
}

func TestApp_GateProtectsRoutes(t *testing.T) {
	a := testApp(t)
	signUp(t, a, "alice")
	token := login(t, a, "alice")

	rec := testutil.DoRequest(a.router, testutil.WithAccessCookie(httptest.NewRequest(http.MethodGet, "/users/me", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", testutil.UnmarshalResponse[usermodels.UserResponse](t, rec).Username)

	rec = testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = testutil.DoRequest(a.router, testutil.WithAccessCookie(httptest.NewRequest(http.MethodGet, "/users/me", nil), token+"x"))
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "listing stays public")

	rec = testutil.DoRequest(a.router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "metrics are ungated")
}

func TestApp_FollowNotifiesConnectedUser(t *testing.T) {
	a := testApp(t)
	signUp(t, a, "alice")
	bob := signUp(t, a, "bob")
	token := login(t, a, "alice")

	bobInbox := &inbox{}
	a.connections.Connect(bob, bobInbox)

	req := testutil.WithAccessCookie(httptest.NewRequest(http.MethodPost, "/users/"+bob.String()+"/follow", nil), token)
	rec := testutil.DoRequest(a.router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []registry.Message{{Message: "alice followed you."}}, bobInbox.messages())

	// following again is not a new event
	rec = testutil.DoRequest(a.router, testutil.WithAccessCookie(
		httptest.NewRequest(http.MethodPost, "/users/"+bob.String()+"/follow", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, bobInbox.messages(), 1)
}

func TestShutdown_ClosesNotificationSockets(t *testing.T) {
	a := testApp(t)
	bob := signUp(t, a, "bob")
	bobInbox := &inbox{}
	a.connections.Connect(bob, bobInbox)

	srv := &http.Server{Handler: a.router}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx, srv, a.connections, slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.Zero(t, a.connections.Len())
	bobInbox.mu.Lock()
	defer bobInbox.mu.Unlock()
	assert.Equal(t, []int{registry.CloseGoingAway}, bobInbox.closes)
}
