package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"folionest.org/internal/ids"
)

// DBTX is the subset of database/sql handles the store runs on. It is
// satisfied by *sql.DB (pooled request path) and *sql.Conn (the dedicated
// per-session handle), so both paths share one set of queries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db DBTX
}

func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

const recordColumns = `id, user_id, notification_type, message, action_url, is_read, read_at, meta, created_at`

func (s *PGStore) Insert(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return ErrInvalidInput
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.Type == "" {
		rec.Type = TypeSystem
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	meta, _ := json.Marshal(rec.Meta)
	_, err := s.db.ExecContext(ctx,
		`insert into notifications(id, user_id, notification_type, message, action_url, is_read, meta, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.UserID, rec.Type, rec.Message, rec.ActionURL, rec.IsRead, meta, rec.CreatedAt,
	)
	return err
}

func (s *PGStore) Query(ctx context.Context, p QueryParams) ([]Record, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, ErrInvalidInput
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`select ` + recordColumns + ` from notifications where user_id=$1`)
	args = append(args, p.UserID)
	if p.SinceID != "" {
		args = append(args, p.SinceID)
		sb.WriteString(` and id > $` + strconv.Itoa(len(args)))
	}
	if p.IsRead != nil {
		args = append(args, *p.IsRead)
		sb.WriteString(` and is_read = $` + strconv.Itoa(len(args)))
	}
	// ULID ids sort by creation time, so newest-first is id descending.
	sb.WriteString(` order by id desc`)
	if p.Limit > 0 {
		args = append(args, p.Limit)
		sb.WriteString(` limit $` + strconv.Itoa(len(args)))
	}
	if p.Offset > 0 {
		args = append(args, p.Offset)
		sb.WriteString(` offset $` + strconv.Itoa(len(args)))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *PGStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from notifications where user_id=$1 and is_read=false`, userID,
	).Scan(&n)
	return n, err
}

func (s *PGStore) MarkRead(ctx context.Context, userID, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`update notifications set is_read=true, read_at=coalesce(read_at, now())
		 where id=$1 and user_id=$2
		 returning `+recordColumns, id, userID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PGStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`update notifications set is_read=true, read_at=now()
		 where user_id=$1 and is_read=false`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PGStore) DeleteRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from notifications where user_id=$1 and is_read=true`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PGStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from notifications where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec    Record
		readAt sql.NullTime
		meta   []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Message, &rec.ActionURL,
		&rec.IsRead, &readAt, &meta, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		rec.ReadAt = &t
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &rec.Meta)
	}
	return rec, nil
}
