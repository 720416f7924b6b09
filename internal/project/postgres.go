package project

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"folionest.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const projectColumns = `id, owner_id, name, description, url, is_published, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *Project) error {
	if strings.TrimSpace(p.OwnerID) == "" || strings.TrimSpace(p.Name) == "" {
		return ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`insert into projects(`+projectColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.URL, p.IsPublished, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+projectColumns+` from projects where id=$1`, id)
	return scanProject(row)
}

func (s *PGStore) ListByOwner(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+projectColumns+` from projects where owner_id=$1 order by created_at desc`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL,
			&p.IsPublished, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidInput
	}
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`update projects set name=$1, description=$2, url=$3, is_published=$4, updated_at=$5
		 where id=$6 and owner_id=$7`,
		p.Name, p.Description, p.URL, p.IsPublished, p.UpdatedAt, p.ID, p.OwnerID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from projects where id=$1 and owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL,
		&p.IsPublished, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
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
