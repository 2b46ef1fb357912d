package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	domain "github.com/ahmethakanbesel/ranking-api/internal/job"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// PostgresRepository is a domain.Store backed by PostgreSQL. Row locks
// serialize concurrent updates of one job, so several processes may share
// the table.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.Store = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func scanPostgresRecord(s scanner) (*domain.Record, error) {
	var (
		r      domain.Record
		status string
		md     []byte
	)
	if err := s.Scan(
		&r.ID, &r.Niche, &r.ItemCount, &r.Title, &r.Description, &r.AutoPublish,
		&status, &r.Message, &r.ResultURL, &md, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Status = domain.Status(status)
	if len(md) > 0 {
		var m pipeline.Metadata
		if err := json.Unmarshal(md, &m); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		r.Metadata = &m
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// mapInsertError turns a primary key violation into ErrDuplicateID.
func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return domain.ErrDuplicateID
	}
	return fmt.Errorf("create job: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
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

	const query = `INSERT INTO jobs (id, niche, item_count, title, description, auto_publish,
		status, message, result_url, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Niche, rec.ItemCount, rec.Title, rec.Description, rec.AutoPublish,
		string(rec.Status), rec.Message, rec.ResultURL, md, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return mapInsertError(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Record, error) {
	rec, err := scanPostgresRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(rec *domain.Record)) (*domain.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update job: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := scanPostgresRecord(tx.QueryRowContext(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
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

	const query = `UPDATE jobs SET status = $1, message = $2, result_url = $3, metadata = $4,
		updated_at = $5 WHERE id = $6`
	if _, err := tx.ExecContext(ctx, query,
		string(next.Status), next.Message, next.ResultURL, md, next.UpdatedAt, id,
	); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update job: commit: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) List(ctx context.Context, f domain.ListFilter) ([]domain.Record, error) {
	query := selectColumns + ` WHERE 1=1`

	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Niche != "" {
		args = append(args, f.Niche)
		query += fmt.Sprintf(" AND niche = $%d", len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// FailInterrupted marks jobs left pending or processing. With several
// processes sharing the table it must only run while no other instance is
// executing jobs.
func (r *PostgresRepository) FailInterrupted(ctx context.Context, message string) (int64, error) {
	const query = `UPDATE jobs SET status = 'error', message = $1, result_url = '', metadata = NULL,
		updated_at = $2 WHERE status IN ('pending', 'processing')`

	res, err := r.db.ExecContext(ctx, query, message, r.now())
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}
