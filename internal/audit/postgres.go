package audit

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (s *PGStore) Insert(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.ProjectID) == "" || strings.TrimSpace(rec.Action) == "" {
		return ErrInvalidInput
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	details, _ := json.Marshal(rec.Details)
	_, err := s.db.ExecContext(ctx,
		`insert into project_audit_logs(id, project_id, user_id, action, details, ip_address, user_agent, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.ProjectID, rec.UserID, rec.Action, details, rec.IPAddress, rec.UserAgent, rec.CreatedAt,
	)
	return err
}

func (s *PGStore) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, project_id, user_id, action, details, ip_address, user_agent, created_at
		 from project_audit_logs where project_id=$1
		 order by id desc limit $2 offset $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var (
			rec     Record
			details []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.UserID, &rec.Action, &details,
			&rec.IPAddress, &rec.UserAgent, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &rec.Details)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
