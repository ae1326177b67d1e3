package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordPending_Dedup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, created, err := repo.RecordPending(ctx, "id-1", "ext-1", []byte(`{"amount":"1.00"}`))
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	if !created {
		t.Fatal("first insert should create the row")
	}
	if first.Status != StatusPending || first.Attempts != 0 || string(first.Payload) != `{"amount":"1.00"}` {
		t.Errorf("row = %+v", first)
	}

	again, created, err := repo.RecordPending(ctx, "id-2", "ext-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("RecordPending (dup): %v", err)
	}
	if created {
		t.Error("duplicate external id must not create a row")
	}
	if again.ID != "id-1" {
		t.Errorf("duplicate returned id %q, want id-1", again.ID)
	}
}

func TestStatusTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, _, err := repo.RecordPending(ctx, id, "ext-"+id, []byte(`{}`)); err != nil {
			t.Fatalf("RecordPending %s: %v", id, err)
		}
	}

	if err := repo.MarkStored(ctx, "a"); err != nil {
		t.Fatalf("MarkStored: %v", err)
	}
	if err := repo.MarkFailed(ctx, "b", "422 invalid"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := repo.MarkRetry(ctx, "c", "connection refused"); err != nil {
		t.Fatalf("MarkRetry: %v", err)
	}

	b, err := repo.GetImport(ctx, "b")
	if err != nil {
		t.Fatalf("GetImport: %v", err)
	}
	if b.Status != StatusFailed || b.Error != "422 invalid" || b.Attempts != 1 {
		t.Errorf("b = %+v", b)
	}

	c, _ := repo.GetImport(ctx, "c")
	if c.Status != StatusPending || c.Attempts != 1 || c.Error != "connection refused" {
		t.Errorf("c = %+v", c)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	want := map[ImportStatus]int64{StatusPending: 1, StatusStored: 1, StatusFailed: 1}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("count[%s] = %d, want %d", status, counts[status], n)
		}
	}
}

func TestMarkUnknownImport(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.MarkStored(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetImport(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettledRowsDoNotTransition(t *testing.T) {
	tests := []struct {
		name    string
		settle  func(r *SQLiteRepository, ctx context.Context) error
		want    ImportStatus
		wantErr string
	}{
		{"stored", func(r *SQLiteRepository, ctx context.Context) error { return r.MarkStored(ctx, "a") }, StatusStored, ""},
		{"failed", func(r *SQLiteRepository, ctx context.Context) error { return r.MarkFailed(ctx, "a", "422 invalid") }, StatusFailed, "422 invalid"},
	}
	late := map[string]func(r *SQLiteRepository, ctx context.Context) error{
		"MarkRetry":  func(r *SQLiteRepository, ctx context.Context) error { return r.MarkRetry(ctx, "a", "timeout") },
		"MarkFailed": func(r *SQLiteRepository, ctx context.Context) error { return r.MarkFailed(ctx, "a", "timeout") },
		"MarkStored": func(r *SQLiteRepository, ctx context.Context) error { return r.MarkStored(ctx, "a") },
	}

	for _, tt := range tests {
		for name, update := range late {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				repo := newTestRepo(t)
				ctx := context.Background()
				if _, _, err := repo.RecordPending(ctx, "a", "ext-a", []byte(`{}`)); err != nil {
					t.Fatalf("RecordPending: %v", err)
				}
				if err := tt.settle(repo, ctx); err != nil {
					t.Fatalf("settle: %v", err)
				}

				if err := update(repo, ctx); !errors.Is(err, ErrAlreadySettled) {
					t.Fatalf("%s on settled row: expected ErrAlreadySettled, got %v", name, err)
				}

				got, err := repo.GetImport(ctx, "a")
				if err != nil {
					t.Fatalf("GetImport: %v", err)
				}
				if got.Status != tt.want || got.Error != tt.wantErr || got.Attempts != 1 {
					t.Errorf("row = %+v, want status %s error %q attempts 1", got, tt.want, tt.wantErr)
				}
			})
		}
	}
}

func TestListPending_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, id := range []string{"1", "2", "3", "4"} {
		if _, _, err := repo.RecordPending(ctx, id, "ext-"+id, []byte(`{}`)); err != nil {
			t.Fatalf("RecordPending: %v", err)
		}
	}
	if err := repo.MarkStored(ctx, "2"); err != nil {
		t.Fatalf("MarkStored: %v", err)
	}

	pending, err := repo.ListPending(ctx, 2)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "1" || pending[1].ID != "3" {
		t.Fatalf("pending = %+v", pending)
	}
	if !pending[0].CreatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("CreatedAt = %s", pending[0].CreatedAt)
	}
}

func TestCountByStatus_Empty(t *testing.T) {
	repo := newTestRepo(t)
	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if len(counts) != 3 || counts[StatusPending] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
