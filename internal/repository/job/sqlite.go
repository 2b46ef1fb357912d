package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/ahmethakanbesel/ranking-api/internal/job"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// Fixed-width so created_at sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, niche, item_count, title, description, auto_publish,
	status, message, result_url, metadata, created_at, updated_at FROM jobs`

// Repository is a domain.Store backed by sqlite. Writes are serialized so
// each Update is a single read-modify-write under the shared record rules.
// With a ":memory:" database everything shares one connection, so reads of
// any job wait for an in-flight Update to finish.
type Repository struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ domain.Store = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var (
		r           domain.Record
		status      string
		autoPublish int
		md          sql.NullString
		createdStr  string
		updatedStr  string
	)
	if err := s.Scan(
		&r.ID, &r.Niche, &r.ItemCount, &r.Title, &r.Description, &autoPublish,
		&status, &r.Message, &r.ResultURL, &md, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	r.AutoPublish = autoPublish != 0
	r.Status = domain.Status(status)
	if md.Valid && md.String != "" {
		var m pipeline.Metadata
		if err := json.Unmarshal([]byte(md.String), &m); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		r.Metadata = &m
	}
	r.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	r.UpdatedAt, _ = time.Parse(timeFormat, updatedStr)
	return &r, nil
}

func encodeMetadata(md *pipeline.Metadata) (sql.NullString, error) {
	if md == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *Repository) Create(ctx context.Context, rec *domain.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.UpdatedAt = rec.CreatedAt
	if err := rec.Validate(); err != nil {
		return err
	}
	md, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create job: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, rec.ID).Scan(&exists)
	if err == nil {
		return domain.ErrDuplicateID
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create job: lookup: %w", err)
	}

	const query = `INSERT INTO jobs (id, niche, item_count, title, description, auto_publish,
		status, message, result_url, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		rec.ID, rec.Niche, rec.ItemCount, rec.Title, rec.Description, boolInt(rec.AutoPublish),
		string(rec.Status), rec.Message, rec.ResultURL, md,
		rec.CreatedAt.Format(timeFormat), rec.UpdatedAt.Format(timeFormat),
	); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create job: commit: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

func (r *Repository) Update(ctx context.Context, id string, fn func(rec *domain.Record)) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update job: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := scanRecord(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update job: load: %w", err)
	}

	next, err := domain.ApplyUpdate(prev, fn)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now()
	md, err := encodeMetadata(next.Metadata)
	if err != nil {
		return nil, err
	}

	const query = `UPDATE jobs SET status = ?, message = ?, result_url = ?, metadata = ?,
		updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query,
		string(next.Status), next.Message, next.ResultURL, md,
		next.UpdatedAt.Format(timeFormat), id,
	); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update job: commit: %w", err)
	}
	return next, nil
}

func (r *Repository) List(ctx context.Context, f domain.ListFilter) ([]domain.Record, error) {
	query := selectColumns + ` WHERE 1=1`

	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Niche != "" {
		query += " AND niche = ?"
		args = append(args, f.Niche)
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// FailInterrupted marks jobs a previous process left pending or processing.
func (r *Repository) FailInterrupted(ctx context.Context, message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const query = `UPDATE jobs SET status = 'error', message = ?, result_url = '', metadata = NULL,
		updated_at = ? WHERE status IN ('pending', 'processing')`

	res, err := r.db.ExecContext(ctx, query, message, r.now().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}
