package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	domain "github.com/ahmethakanbesel/ranking-api/internal/job"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
	"github.com/ahmethakanbesel/ranking-api/internal/platform/postgres"
)

// setupPostgres connects to TEST_DATABASE_URL and empties the jobs table.
func setupPostgres(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := postgres.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`TRUNCATE jobs`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgresRepository(db.DB)
}

func TestMapInsertError(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
	if !errors.Is(mapInsertError(dup), domain.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID for unique violation")
	}

	other := &pgconn.PgError{Code: pgerrcode.NotNullViolation}
	err := mapInsertError(other)
	if errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("did not expect ErrDuplicateID for %s", other.Code)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Errorf("expected wrapped PgError, got %v", err)
	}
}

func TestPostgres_CreateGetDuplicate(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newRecord("job-1", "cats")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, newRecord("job-1", "dogs")); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Niche != "cats" || !got.AutoPublish || got.Status != domain.StatusProcessing {
		t.Errorf("unexpected record: %+v", got)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_UpdateCompletes(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	if err := repo.Create(ctx, newRecord("job-1", "cats")); err != nil {
		t.Fatalf("create: %v", err)
	}

	md := pipeline.Metadata{Title: "Top 3", Tags: []string{"cats"}, CategoryID: "24"}
	if _, err := repo.Update(ctx, "job-1", func(r *domain.Record) {
		r.Status = domain.StatusCompleted
		r.Message = domain.MsgGenerated
		r.ResultURL = "/download/a.mp4"
		r.Metadata = &md
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.ResultURL != "/download/a.mp4" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Metadata == nil || got.Metadata.Title != "Top 3" {
		t.Errorf("expected metadata, got %+v", got.Metadata)
	}

	_, err = repo.Update(ctx, "job-1", func(r *domain.Record) { r.Status = domain.StatusProcessing })
	if !errors.Is(err, domain.ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
}

func TestPostgres_ListAndFailInterrupted(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	for _, r := range []*domain.Record{newRecord("a", "cats"), newRecord("b", "dogs"), newRecord("c", "cats")} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}

	cats, err := repo.List(ctx, domain.ListFilter{Niche: "cats"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 cats jobs, got %d", len(cats))
	}

	n, err := repo.FailInterrupted(ctx, "Error: interrupted by service restart")
	if err != nil {
		t.Fatalf("fail interrupted: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
	failed, err := repo.List(ctx, domain.ListFilter{Status: domain.StatusError, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("expected limit to apply, got %d", len(failed))
	}
}
