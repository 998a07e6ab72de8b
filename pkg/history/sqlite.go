package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
	}
	if path != ":memory:" {
		pragmas = append(pragmas, `PRAGMA journal_mode = WAL;`)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, e *Entry) error {
	params, err := json.Marshal(e.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE id = ?`, e.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check entry: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, session_id, scanner_type, parameters, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.ScannerType, string(params), string(e.Status), e.Error,
		formatTime(e.StartedAt), formatTime(e.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	for i, r := range e.Results {
		if err := insertRecord(ctx, tx, e.ID, i, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Append(ctx context.Context, id string, r Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, err := entryStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if status.Final() {
		return fmt.Errorf("%w: %s", ErrFrozen, id)
	}

	var seq int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE entry_id = ?`, id).Scan(&seq)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	if err := insertRecord(ctx, tx, id, seq, r); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Finalize(ctx context.Context, id string, status Status, cause error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := entryStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if current.Final() {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errString(cause), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("finalize entry: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, scanner_type, parameters, status, error, started_at, finished_at
		FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, target_id, target, line, data, error, time
		FROM records WHERE entry_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                   Record
			typ, data, recorded string
		)
		if err := rows.Scan(&typ, &r.TargetID, &r.Target, &r.Line, &data, &r.Error, &recorded); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Type = RecordType(typ)
		r.Time = parseTime(recorded)
		if data != "" {
			if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
				return nil, fmt.Errorf("decode record data: %w", err)
			}
			normalizeNumbers(r.Data)
		}
		e.Results = append(e.Results, r)
	}
	return e, rows.Err()
}

func (s *SQLiteStore) Last(ctx context.Context, sessionID string) (*Entry, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM entries
		WHERE session_id = ? AND status != ?
		ORDER BY finished_at DESC, started_at DESC LIMIT 1`,
		sessionID, string(StatusRunning)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no finished scan for session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("query last entry: %w", err)
	}
	return s.Get(ctx, id)
}

// List returns entry metadata without results, oldest first.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]*Entry, error) {
	query := `SELECT id, session_id, scanner_type, parameters, status, error, started_at, finished_at FROM entries`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                          Entry
		params, status, start, fin string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.ScannerType, &params, &status, &e.Error, &start, &fin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Status = Status(status)
	e.StartedAt = parseTime(start)
	e.FinishedAt = parseTime(fin)
	if params != "" {
		if err := json.Unmarshal([]byte(params), &e.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
		normalizeNumbers(e.Parameters)
	}
	return &e, nil
}

func entryStatus(ctx context.Context, tx *sql.Tx, id string) (Status, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM entries WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("query entry status: %w", err)
	}
	return Status(status), nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, entryID string, seq int, r Record) error {
	var data string
	if len(r.Data) > 0 {
		b, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("encode record data: %w", err)
		}
		data = string(b)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (entry_id, seq, type, target_id, target, line, data, error, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entryID, seq, string(r.Type), r.TargetID, r.Target, r.Line, data, r.Error, formatTime(r.Time))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
