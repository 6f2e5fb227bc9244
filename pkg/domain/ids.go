// Package domain holds the typed identifiers shared across modules. Each ID is
// a distinct named UUID type so a ReviewID can never be passed where a UserID
// is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "cinelog/pkg/domain-errors"
)

type (
	UserID   uuid.UUID
	ReviewID uuid.UUID
	MovieID  uuid.UUID
)

func NewUserID() UserID     { return UserID(uuid.New()) }
func NewReviewID() ReviewID { return ReviewID(uuid.New()) }
func NewMovieID() MovieID   { return MovieID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id ReviewID) String() string { return uuid.UUID(id).String() }
func (id MovieID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MovieID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses a non-nil UUID string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseReviewID parses a non-nil UUID string into a ReviewID.
func ParseReviewID(s string) (ReviewID, error) {
	u, err := parseUUID(s, "review id")
	return ReviewID(u), err
}

// ParseMovieID parses a non-nil UUID string into a MovieID.
func ParseMovieID(s string) (MovieID, error) {
	u, err := parseUUID(s, "movie id")
	return MovieID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
