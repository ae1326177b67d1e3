package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	applog "fireflyiii/internal/log"
)

// ImportStatus is the ledger state of one imported transaction.
type ImportStatus string

const (
	StatusPending ImportStatus = "pending"
	StatusStored  ImportStatus = "stored"
	StatusFailed  ImportStatus = "failed"
)

var (
	ErrNotFound = errors.New("import not found")
	// ErrAlreadySettled is returned when a status update targets a row that
	// is no longer pending.
	ErrAlreadySettled = errors.New("import already settled")
)

// Import is one ledger row. Payload holds the JSON encoded transaction split
// that will be sent to Firefly III.
type Import struct {
	ID         string
	ExternalID string
	Payload    []byte
	Status     ImportStatus
	Error      string
	Attempts   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const importColumns = `id, external_id, payload, status, error, attempts, created_at, updated_at`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialize on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordPending inserts a pending row unless one with the same external id
// exists. It returns the row as stored and whether it was created now.
func (r *SQLiteRepository) RecordPending(ctx context.Context, id, externalID string, payload []byte) (Import, bool, error) {
	now := r.now().Format(timeLayout)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO imports (id, external_id, payload, status, error, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', 0, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		id, externalID, string(payload), StatusPending, now, now)
	if err != nil {
		return Import{}, false, fmt.Errorf("insert import: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Import{}, false, fmt.Errorf("insert import: %w", err)
	}

	imp, err := r.GetImportByExternalID(ctx, externalID)
	if err != nil {
		return Import{}, false, err
	}
	if n == 1 {
		slog.DebugContext(ctx, "Import recorded", applog.FieldComponent, applog.ComponentStorage, applog.FieldImportID, id, applog.FieldExternalID, externalID)
	}
	return imp, n == 1, nil
}

// MarkStored records a successful store.
func (r *SQLiteRepository) MarkStored(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, StatusStored, "")
}

// MarkFailed records a permanent failure; the row will not be retried.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.updateStatus(ctx, id, StatusFailed, reason)
}

// MarkRetry keeps the row pending and records the failed attempt.
func (r *SQLiteRepository) MarkRetry(ctx context.Context, id, reason string) error {
	return r.updateStatus(ctx, id, StatusPending, reason)
}

// updateStatus only moves pending rows so a late retry or failure cannot
// overwrite a settled outcome.
func (r *SQLiteRepository) updateStatus(ctx context.Context, id string, status ImportStatus, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE imports
		SET status = ?, error = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, reason, r.now().Format(timeLayout), id, StatusPending)
	if err != nil {
		return fmt.Errorf("update import %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update import %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetImport(ctx, id); err != nil {
		return fmt.Errorf("update import %s: %w", id, err)
	}
	return fmt.Errorf("update import %s: %w", id, ErrAlreadySettled)
}

func (r *SQLiteRepository) GetImport(ctx context.Context, id string) (Import, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if err != nil {
		return Import{}, fmt.Errorf("get import %s: %w", id, err)
	}
	return imp, nil
}

func (r *SQLiteRepository) GetImportByExternalID(ctx context.Context, externalID string) (Import, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE external_id = ?`, externalID)
	imp, err := scanImport(row)
	if err != nil {
		return Import{}, fmt.Errorf("get import by external id %s: %w", externalID, err)
	}
	return imp, nil
}

// ListPending returns up to limit pending rows, oldest first.
func (r *SQLiteRepository) ListPending(ctx context.Context, limit int) ([]Import, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+importColumns+`
		FROM imports
		WHERE status = ?
		ORDER BY created_at, rowid
		LIMIT ?`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending imports: %w", err)
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending imports: %w", err)
		}
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending imports: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of rows per status. Statuses without
// rows are present with a zero count.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[ImportStatus]int64, error) {
	counts := map[ImportStatus]int64{
		StatusPending: 0,
		StatusStored:  0,
		StatusFailed:  0,
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM imports GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count imports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count imports: %w", err)
		}
		counts[ImportStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count imports: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(s scanner) (Import, error) {
	var (
		imp                  Import
		payload, status      string
		createdAt, updatedAt string
	)
	err := s.Scan(&imp.ID, &imp.ExternalID, &payload, &status, &imp.Error, &imp.Attempts, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNotFound
	}
	if err != nil {
		return Import{}, err
	}

	imp.Payload = []byte(payload)
	imp.Status = ImportStatus(status)
	if imp.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Import{}, fmt.Errorf("parse created_at: %w", err)
	}
	if imp.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Import{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return imp, nil
}
