package models

import (
	"strings"
	"time"

	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
)

// Gender is the self-declared gender on a profile.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User is a registered account.
type User struct {
	ID           id.UserID
	Username     string
	PasswordHash string
	Age          int
	Gender       Gender
	CreatedAt    time.Time
}

// Filter narrows a user search. Nil fields match everything.
type Filter struct {
	Username *string
	Age      *int
	Gender   *Gender
}

// Matches reports whether u satisfies every set field.
func (f Filter) Matches(u *User) bool {
	if f.Username != nil && u.Username != *f.Username {
		return false
	}
	if f.Age != nil && u.Age != *f.Age {
		return false
	}
	if f.Gender != nil && u.Gender != *f.Gender {
		return false
	}
	return true
}

// CreateUserRequest is the sign-up payload.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Age      int    `json:"age"`
	Gender   Gender `json:"gender"`
}

// Normalize trims the username.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

// Validate checks the basic shape of the payload.
func (r *CreateUserRequest) Validate() error {
	switch {
	case r.Username == "":
		return dErrors.New(dErrors.CodeBadRequest, "username is required")
	case len(r.Username) > 64:
		return dErrors.New(dErrors.CodeBadRequest, "username must be at most 64 characters")
	case r.Password == "":
		return dErrors.New(dErrors.CodeBadRequest, "password is required")
	case len(r.Password) > 72:
		// bcrypt ignores input past 72 bytes
		return dErrors.New(dErrors.CodeBadRequest, "password must be at most 72 bytes")
	case r.Age <= 0:
		return dErrors.New(dErrors.CodeBadRequest, "age must be positive")
	case !r.Gender.Valid():
		return dErrors.New(dErrors.CodeBadRequest, "gender must be male or female")
	}
	return nil
}

// LoginRequest carries username/password credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserResponse returns the new account id.
type CreateUserResponse struct {
	ID string `json:"id"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Age      int    `json:"age"`
	Gender   Gender `json:"gender"`
}

// ToResponse renders the public view.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Age:      u.Age,
		Gender:   u.Gender,
	}
}
