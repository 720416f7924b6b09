package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"folionest.org/internal/ids"
)

// PostgreSQL unique_violation.
const pgUniqueViolation = "23505"

var _ UserStore = (*PGStore)(nil)

// PGStore implements UserStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Username = strings.TrimSpace(strings.ToLower(u.Username))
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, display_name, password_hash, is_active)
		 values($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.Email, u.DisplayName, u.PasswordHash, u.IsActive,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, email, display_name, password_hash, is_active, created_at, updated_at
		 from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	row := s.db.QueryRowContext(ctx,
		`select id, username, email, display_name, password_hash, is_active, created_at, updated_at
		 from users where username=$1`, username)
	return scanUser(row)
}

func (s *PGStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`,
		userID, passwordHash,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set is_active=$2, updated_at=now() where id=$1`,
		userID, active,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
