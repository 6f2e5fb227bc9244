package follow

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

// PostgresStore persists follow edges in the follows table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Follow upserts the edge. The conditional update only fires for an inactive
// row, so RETURNING yields a row exactly when the state changed. A missing
// user surfaces as ErrNotFound.
func (s *PostgresStore) Follow(ctx context.Context, follower, following id.UserID, at time.Time) (bool, error) {
	var ignored uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO follows (follower_id, following_id, is_following, created_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, $3)
		 ON CONFLICT (follower_id, following_id)
		 DO UPDATE SET is_following = TRUE, updated_at = EXCLUDED.updated_at
		 WHERE follows.is_following = FALSE
		 RETURNING follower_id`,
		uuid.UUID(follower), uuid.UUID(following), at,
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
	return false, fmt.Errorf("upsert follow: %w", err)
}

func (s *PostgresStore) Unfollow(ctx context.Context, follower, following id.UserID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE follows SET is_following = FALSE, updated_at = $3
		 WHERE follower_id = $1 AND following_id = $2 AND is_following = TRUE`,
		uuid.UUID(follower), uuid.UUID(following), at,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate follow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate follow: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) FollowingIDs(ctx context.Context, follower id.UserID) ([]id.UserID, error) {
	return s.queryIDs(ctx,
		`SELECT following_id FROM follows
		 WHERE follower_id = $1 AND is_following
		 ORDER BY created_at, following_id`, follower)
}

func (s *PostgresStore) FollowerIDs(ctx context.Context, following id.UserID) ([]id.UserID, error) {
	return s.queryIDs(ctx,
		`SELECT follower_id FROM follows
		 WHERE following_id = $1 AND is_following
		 ORDER BY created_at, follower_id`, following)
}

func (s *PostgresStore) queryIDs(ctx context.Context, query string, userID id.UserID) ([]id.UserID, error) {
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	out := []id.UserID{}
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		out = append(out, id.UserID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	return out, nil
}
