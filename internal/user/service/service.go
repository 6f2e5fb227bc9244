// Package service implements account creation, credential checks and user
// lookups. It also resolves token subjects for the auth gate.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/platform/sentinel"
	"cinelog/pkg/requestcontext"
)

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error)
	Search(ctx context.Context, filter models.Filter) ([]*models.User, error)
}

// Service orchestrates user operations.
type Service struct {
	store      Store
	logger     *slog.Logger
	audit      audit.Publisher
	bcryptCost int
	now        func() time.Time

	// dummyHash keeps failed logins for unknown usernames as slow as for
	// known ones.
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     slog.Default(),
		audit:      audit.Nop{},
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cinelog-dummy-password"), s.bcryptCost)
	return s
}

// Create registers a new account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	u := &models.User{
		ID:           id.NewUserID(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Age:          req.Age,
		Gender:       req.Gender,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionUserCreated,
		Subject:   u.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return u, nil
}

// Authenticate checks username/password credentials. Unknown users and wrong
// passwords fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username and password are required")
	}

	u, err := s.store.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || u == nil {
		s.audit.Emit(ctx, audit.Event{
			Action:    audit.ActionLoginFailed,
			Subject:   username,
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionLoginSucceeded,
		Subject:   u.ID.String(),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return u, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return u, nil
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.Search(ctx, models.Filter{})
}

// Search returns users matching filter.
func (s *Service) Search(ctx context.Context, filter models.Filter) ([]*models.User, error) {
	users, err := s.store.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search users")
	}
	return users, nil
}

// ListByIDs returns the users among ids that exist.
func (s *Service) ListByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error) {
	users, err := s.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load users")
	}
	return users, nil
}

// FindIdentity resolves a token subject for the auth gate.
func (s *Service) FindIdentity(ctx context.Context, userID id.UserID) (*auth.Identity, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUserNotFound, "user not found")
		}
		return nil, err
	}
	return &auth.Identity{UserID: u.ID, Username: u.Username}, nil
}
