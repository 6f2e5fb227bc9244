package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "cinelog/pkg/domain-errors"
)

// Kind distinguishes access from refresh tokens. Both share one signing
// mechanism; the service never checks the kind at verify time.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is what callers put into a token and get back out of Verify.
type Claims struct {
	Subject  string
	Username string
	Kind     Kind
}

// tokenClaims is the wire form: caller claims plus expiry bookkeeping.
type tokenClaims struct {
	Username string `json:"username,omitempty"`
	Kind     Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login hands out.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// JWTService issues and verifies self-contained HS256 tokens. Verification
// needs only the signing key and the token bytes.
type JWTService struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      func() time.Time
	parser     *jwt.Parser
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(clock func() time.Time) Option {
	return func(s *JWTService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewJWTService(signingKey string, accessTTL, refreshTTL time.Duration, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		// jwt treats now == exp as expired; a token stays valid through its
		// expiry instant.
		jwt.WithTimeFunc(func() time.Time { return s.clock().Add(-time.Nanosecond) }),
	)
	return s
}

func (s *JWTService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs claims with expiry = now + ttl, rounded up to the whole second
// the exp claim can carry.
func (s *JWTService) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", dErrors.New(dErrors.CodeInternal, "token ttl must be positive")
	}
	now := s.clock()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Username: claims.Username,
		Kind:     claims.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			ExpiresAt: jwt.NewNumericDate(expiryAt(now, ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signedToken, nil
}

func expiryAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// IssueAccess signs a short-lived access token.
func (s *JWTService) IssueAccess(subject, username string) (string, error) {
	return s.Issue(Claims{Subject: subject, Username: username, Kind: KindAccess}, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (s *JWTService) IssueRefresh(subject, username string) (string, error) {
	return s.Issue(Claims{Subject: subject, Username: username, Kind: KindRefresh}, s.refreshTTL)
}

// IssuePair signs an access and a refresh token for the same subject.
func (s *JWTService) IssuePair(subject, username string) (*TokenPair, error) {
	access, err := s.IssueAccess(subject, username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefresh(subject, username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
	}, nil
}

// Verify checks signature and expiry and returns the caller claims. Failures
// are coded CodeTokenMalformed, CodeTokenSignatureInvalid or CodeTokenExpired.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	parsed, err := s.parser.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeTokenSignatureInvalid, "invalid token")
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "invalid token claims")
	}

	return &Claims{
		Subject:  claims.Subject,
		Username: claims.Username,
		Kind:     claims.Kind,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return dErrors.Wrap(err, dErrors.CodeTokenExpired, "token has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return dErrors.Wrap(err, dErrors.CodeTokenSignatureInvalid, "invalid token signature")
	default:
		return dErrors.Wrap(err, dErrors.CodeTokenMalformed, "malformed token")
	}
}
