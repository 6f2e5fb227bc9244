package models

import (
	"strings"
	"time"

	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
)

const maxTitleLength = 200

// Review is a user's write-up of a movie. Likes point at reviews, so the
// author is who gets notified.
type Review struct {
	ID        id.ReviewID
	AuthorID  id.UserID
	MovieID   id.MovieID
	Title     string
	Content   string
	CreatedAt time.Time
}

// CreateReviewRequest is the payload of POST /reviews.
type CreateReviewRequest struct {
	MovieID string `json:"movie_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Normalize trims the title.
func (r *CreateReviewRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.MovieID = strings.TrimSpace(r.MovieID)
}

// Validate checks the payload and returns the parsed movie id.
func (r *CreateReviewRequest) Validate() (id.MovieID, error) {
	movieID, err := id.ParseMovieID(r.MovieID)
	if err != nil {
		return id.MovieID{}, dErrors.New(dErrors.CodeBadRequest, "movie_id must be a uuid")
	}
	switch {
	case r.Title == "":
		return id.MovieID{}, dErrors.New(dErrors.CodeBadRequest, "title is required")
	case len(r.Title) > maxTitleLength:
		return id.MovieID{}, dErrors.New(dErrors.CodeBadRequest, "title must be at most 200 characters")
	case strings.TrimSpace(r.Content) == "":
		return id.MovieID{}, dErrors.New(dErrors.CodeBadRequest, "content is required")
	}
	return movieID, nil
}

// ReviewResponse is the public view of a review.
type ReviewResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	MovieID   string    `json:"movie_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Review) ToResponse() ReviewResponse {
	return ReviewResponse{
		ID:        r.ID.String(),
		AuthorID:  r.AuthorID.String(),
		MovieID:   r.MovieID.String(),
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
}
