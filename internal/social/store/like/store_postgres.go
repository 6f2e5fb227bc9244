package like

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
)

const foreignKeyViolation = "23503"

// PostgresStore persists likes in the review_likes table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Like(ctx context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error) {
	var ignored uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO review_likes (user_id, review_id, is_liked, created_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, $3)
		 ON CONFLICT (user_id, review_id)
		 DO UPDATE SET is_liked = TRUE, updated_at = EXCLUDED.updated_at
		 WHERE review_likes.is_liked = FALSE
		 RETURNING user_id`,
		uuid.UUID(userID), uuid.UUID(reviewID), at,
	).Scan(&ignored)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return false, sentinel.ErrNotFound
	}
	return false, fmt.Errorf("upsert like: %w", err)
}

func (s *PostgresStore) Unlike(ctx context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_likes SET is_liked = FALSE, updated_at = $3
		 WHERE user_id = $1 AND review_id = $2 AND is_liked = TRUE`,
		uuid.UUID(userID), uuid.UUID(reviewID), at,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate like: %w", err)
	}
	return n > 0, nil
}
