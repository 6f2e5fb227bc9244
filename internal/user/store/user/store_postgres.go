package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists users in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, username, hashed_password, age, gender, created_at`

func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(u.ID), u.Username, u.PasswordHash, u.Age, string(u.Gender), u.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	raw := make([]string, len(ids))
	for i, userID := range ids {
		raw[i] = userID.String()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY created_at, username`,
		pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	return scanUsers(rows)
}

func (s *PostgresStore) Search(ctx context.Context, filter models.Filter) ([]*models.User, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Username != nil {
		args = append(args, *filter.Username)
		clauses = append(clauses, fmt.Sprintf("username = $%d", len(args)))
	}
	if filter.Age != nil {
		args = append(args, *filter.Age)
		clauses = append(clauses, fmt.Sprintf("age = $%d", len(args)))
	}
	if filter.Gender != nil {
		args = append(args, string(*filter.Gender))
		clauses = append(clauses, fmt.Sprintf("gender = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, username`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return scanUsers(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u      models.User
		rawID  uuid.UUID
		gender string
	)
	if err := row.Scan(&rawID, &u.Username, &u.PasswordHash, &u.Age, &gender, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(rawID)
	u.Gender = models.Gender(gender)
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	defer rows.Close()
	out := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
