package auth_test

//go:generate mockgen -source=auth.go -destination=mocks/mocks.go -package=mocks TokenVerifier,IdentityLookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwttoken "cinelog/internal/jwt_token"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/platform/middleware/auth/mocks"
	"cinelog/pkg/platform/sentinel"
	"cinelog/pkg/requestcontext"
	"cinelog/pkg/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const signingKey = "test-signing-key-0123456789abcdef"

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) all() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

type GateSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	lookup  *mocks.MockIdentityLookup
	tokens  *jwttoken.JWTService
	audit   *recordingAudit
	metrics *auth.Metrics
	gate    *auth.Gate
	alice   auth.Identity
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.lookup = mocks.NewMockIdentityLookup(s.ctrl)
	s.tokens = jwttoken.NewJWTService(signingKey, 30*time.Minute, 7*24*time.Hour)
	s.audit = &recordingAudit{}
	s.metrics = auth.NewMetrics(prometheus.NewRegistry())
	s.gate = auth.NewGate(
		jwttoken.NewGateVerifierAdapter(s.tokens),
		s.lookup,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		auth.WithAudit(s.audit),
		auth.WithMetrics(s.metrics),
	)
	s.alice = auth.Identity{UserID: id.NewUserID(), Username: "alice"}
}

func (s *GateSuite) accessToken(identity auth.Identity) string {
	token, err := s.tokens.IssueAccess(identity.UserID.String(), identity.Username)
	s.Require().NoError(err)
	return token
}

func (s *GateSuite) TestClassify() {
	cases := map[string]auth.Route{
		"/users":                       auth.RoutePublic,
		"/users/":                      auth.RoutePublic,
		"/users/login":                 auth.RoutePublic,
		"/users/search":                auth.RoutePublic,
		"/users/me":                    auth.RouteProtected,
		"/users/me/followers":          auth.RouteProtected,
		"/reviews":                     auth.RouteProtected,
		"/likes/reviews/abc/like":      auth.RouteProtected,
		"/usersettings":                auth.RouteUngated,
		"/movies":                      auth.RouteUngated,
		"/notifications":               auth.RouteUngated,
		"/health":                      auth.RouteUngated,
		"/":                            auth.RouteUngated,
		"/users/search/advanced-thing": auth.RouteProtected,
	}
	for path, want := range cases {
		s.Equal(want, s.gate.Classify(path), path)
	}
}

func (s *GateSuite) TestAuthenticate_Allowed() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(&s.alice, nil)

	d := s.gate.Authenticate(context.Background(), s.accessToken(s.alice))

	s.Require().True(d.Allowed())
	s.Equal(auth.ReasonNone, d.Reason)
	s.Equal(s.alice, *d.Identity)
	s.NoError(d.AsError())
}

func (s *GateSuite) TestAuthenticate_Rejections() {
	expired := jwttoken.NewJWTService(signingKey, 30*time.Minute, time.Hour,
		jwttoken.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	expiredToken, err := expired.IssueAccess(s.alice.UserID.String(), "alice")
	s.Require().NoError(err)

	foreign := jwttoken.NewJWTService("some-other-key-0123456789abcdef", time.Minute, time.Hour)
	foreignToken, err := foreign.IssueAccess(s.alice.UserID.String(), "alice")
	s.Require().NoError(err)

	notAUser, err := s.tokens.IssueAccess("not-a-uuid", "mallory")
	s.Require().NoError(err)

	cases := []struct {
		name  string
		token string
		want  auth.Reason
	}{
		{"missing", "", auth.ReasonMissingToken},
		{"garbage", "not.a.jwt", auth.ReasonTokenMalformed},
		{"wrong key", foreignToken, auth.ReasonTokenSignatureInvalid},
		{"expired", expiredToken, auth.ReasonTokenExpired},
		{"subject not an id", notAUser, auth.ReasonUserNotFound},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			d := s.gate.Authenticate(context.Background(), tc.token)
			s.False(d.Allowed())
			s.Nil(d.Identity)
			s.Equal(tc.want, d.Reason)
			s.True(dErrors.HasCode(d.AsError(), tc.want.Code()))
		})
	}
}

func (s *GateSuite) TestAuthenticate_UnknownUser() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(nil, sentinel.ErrNotFound)

	d := s.gate.Authenticate(context.Background(), s.accessToken(s.alice))

	s.Equal(auth.ReasonUserNotFound, d.Reason)
	s.Nil(d.Identity)
}

func (s *GateSuite) TestAuthenticate_LookupFailureIsInternal() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(nil, errors.New("connection refused"))

	d := s.gate.Authenticate(context.Background(), s.accessToken(s.alice))

	s.Equal(auth.ReasonInternal, d.Reason)
	s.True(dErrors.HasCode(d.AsError(), dErrors.CodeInternal))
}

func (s *GateSuite) TestMiddleware_PublicAndUngatedPassThrough() {
	called := 0
	handler := s.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		_, ok := requestcontext.UserID(r.Context())
		s.False(ok, "no identity on unauthenticated routes")
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/users/login", "/users", "/users/search", "/health"} {
		rr := testutil.DoRequest(handler, httptest.NewRequest(http.MethodGet, path, nil))
		s.Equal(http.StatusNoContent, rr.Code, path)
	}
	s.Equal(4, called)
}

func (s *GateSuite) TestMiddleware_AttachesIdentity() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(&s.alice, nil)

	var gotID id.UserID
	var gotName string
	handler := s.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = requestcontext.UserID(r.Context())
		gotName = requestcontext.Username(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := testutil.WithAccessCookie(httptest.NewRequest(http.MethodGet, "/users/me", nil), s.accessToken(s.alice))
	rr := testutil.DoRequest(handler, req)

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(s.alice.UserID, gotID)
	s.Equal("alice", gotName)
	s.Empty(s.audit.all())
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Decisions.WithLabelValues("http", "allowed")))
}

// Every rejected request gets a 401 before the handler runs, with no
// identity attached and no hint about which check failed.
func (s *GateSuite) TestMiddleware_RejectsBeforeHandler() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound).AnyTimes()

	handler := s.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Fail("handler must not run for rejected requests")
	}))

	cases := map[string]string{
		"no cookie":    "",
		"garbage":      "abc.def.ghi",
		"unknown user": s.accessToken(auth.Identity{UserID: id.NewUserID(), Username: "ghost"}),
	}
	for name, token := range cases {
		s.Run(name, func() {
			req := httptest.NewRequest(http.MethodPost, "/reviews", nil)
			if token != "" {
				req = testutil.WithAccessCookie(req, token)
			}
			rr := testutil.DoRequest(handler, req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
			s.NotContains(rr.Body.String(), "user_not_found")
			s.NotContains(rr.Body.String(), "signature")
		})
	}

	events := s.audit.all()
	s.Require().Len(events, 3)
	for _, e := range events {
		s.Equal(audit.ActionAuthFailed, e.Action)
		s.Equal("/reviews", e.Route)
	}
}

func (s *GateSuite) TestMiddleware_InternalErrorIs500() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(nil, errors.New("db down"))
	handler := s.gate.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		s.Fail("handler must not run")
	}))

	req := testutil.WithAccessCookie(httptest.NewRequest(http.MethodGet, "/users/me", nil), s.accessToken(s.alice))
	rr := testutil.DoRequest(handler, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	s.NotContains(rr.Body.String(), "db down")
}

func (s *GateSuite) TestAuthenticateHandshake() {
	s.lookup.EXPECT().FindIdentity(gomock.Any(), s.alice.UserID).Return(&s.alice, nil).Times(2)
	token := s.accessToken(s.alice)

	for _, header := range []string{"Bearer " + token, "bearer " + token} {
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", header)
		d := s.gate.AuthenticateHandshake(req)
		s.True(d.Allowed(), header)
	}

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
	d := s.gate.AuthenticateHandshake(req)
	s.Equal(auth.ReasonMissingToken, d.Reason, "the handshake ignores cookies")

	events := s.audit.all()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionHandshakeRejected, events[0].Action)
	s.Equal(string(auth.ReasonMissingToken), events[0].Reason)
}

func (s *GateSuite) TestAuthenticateHandshake_UnusableHeaderIsMalformed() {
	for _, header := range []string{"Basic abc", "justatoken", "Bearer", "Bearer  "} {
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", header)
		d := s.gate.AuthenticateHandshake(req)
		s.Equal(auth.ReasonTokenMalformed, d.Reason, "header %q", header)
		s.Nil(d.Identity)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header      string
		wantToken   string
		wantPresent bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"Bearer", "", true},
		{"Bearer   ", "", true},
		{"Basic abc", "", true},
		{"justatoken", "", true},
		{"Token abc.def", "", true},
		{"Bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer a.b.c d", "a.b.c d", true},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		token, present := auth.BearerToken(req)
		assert.Equal(t, tc.wantToken, token, "header %q", tc.header)
		assert.Equal(t, tc.wantPresent, present, "header %q", tc.header)
	}
}

func TestReasonCode(t *testing.T) {
	require.Equal(t, dErrors.CodeMissingToken, auth.ReasonMissingToken.Code())
	require.Equal(t, dErrors.CodeUserNotFound, auth.ReasonUserNotFound.Code())
	require.Equal(t, dErrors.CodeInternal, auth.ReasonInternal.Code())
}
