package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cinelog/internal/review/models"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore persists reviews in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts r. An author that no longer exists surfaces as ErrNotFound.
func (s *PostgresStore) Create(ctx context.Context, r *models.Review) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, user_id, movie_id, title, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(r.ID), uuid.UUID(r.AuthorID), uuid.UUID(r.MovieID), r.Title, r.Content, r.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case uniqueViolation:
				return sentinel.ErrConflict
			case foreignKeyViolation:
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reviewID id.ReviewID) (*models.Review, error) {
	var r models.Review
	var rawID, rawAuthor, rawMovie uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, movie_id, title, content, created_at FROM reviews WHERE id = $1`,
		uuid.UUID(reviewID),
	).Scan(&rawID, &rawAuthor, &rawMovie, &r.Title, &r.Content, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	r.ID = id.ReviewID(rawID)
	r.AuthorID = id.UserID(rawAuthor)
	r.MovieID = id.MovieID(rawMovie)
	return &r, nil
}
