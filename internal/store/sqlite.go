package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver registered under "sqlite"

	"github.com/scriptd/scriptd/internal/backoff"
	"github.com/scriptd/scriptd/internal/model"
)

// transientRetryPolicy bounds how long a caller waits on a contended SQLite
// file (SQLITE_BUSY) before the error is surfaced, per §7's "retry on the
// next call; never block the scheduler" guidance.
func transientRetryPolicy() *backoff.ConstantBackoffPolicy {
	p := backoff.NewConstantBackoffPolicy(25 * time.Millisecond)
	p.MaxRetries = 4
	return p
}

// SQLiteStore is the default Catalog Adapter, backed by modernc.org/sqlite
// (no cgo). DATABASE_URL defaults to a local file per spec.md §6.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dsn and applies
// pending migrations.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite writers are serialized; avoid SQLITE_BUSY storms
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func (s *SQLiteStore) withRetry(ctx context.Context, fn func() error) error {
	return backoff.Do(ctx, transientRetryPolicy(), func() error {
		err := fn()
		if err != nil && !isTransient(err) {
			// Not transient: stop retrying by returning a sentinel the
			// retrier can't distinguish from "still failing" -- so we
			// short-circuit here instead of looping on a permanent error.
			return &nonTransientError{err}
		}
		return err
	})
}

type nonTransientError struct{ err error }

func (e *nonTransientError) Error() string { return e.err.Error() }
func (e *nonTransientError) Unwrap() error { return e.err }

func unwrapNonTransient(err error) error {
	var nt *nonTransientError
	if errors.As(err, &nt) {
		return nt.err
	}
	return err
}

// CreateScript implements Store.
func (s *SQLiteStore) CreateScript(ctx context.Context, sc *model.Script) error {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO scripts (name, path, type, arguments, cron, enabled, run_on_startup, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Name, sc.Path, string(sc.Type), sc.Arguments, sc.Cron, sc.Enabled, sc.RunOnStartup, sc.Description, sc.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicatePath
			}
			return fmt.Errorf("insert script: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		sc.ID = id
		return nil
	})
	return unwrapNonTransient(err)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const scriptColumns = `id, name, path, type, arguments, cron, enabled, run_on_startup, description, created_at, last_run, last_status, last_output`

func scanScript(row interface{ Scan(...any) error }) (*model.Script, error) {
	var (
		sc         model.Script
		typ        string
		status     sql.NullString
		createdAt  string
		lastRun    sql.NullString
		arguments  sql.NullString
		cron       sql.NullString
		desc       sql.NullString
		lastOutput sql.NullString
	)
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Path, &typ, &arguments, &cron, &sc.Enabled, &sc.RunOnStartup, &desc, &createdAt, &lastRun, &status, &lastOutput); err != nil {
		return nil, err
	}
	sc.Type = model.ScriptType(typ)
	sc.Arguments = arguments.String
	sc.Cron = cron.String
	sc.Description = desc.String
	sc.LastOutput = lastOutput.String
	sc.LastStatus = model.RunStatus(status.String)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sc.CreatedAt = t
	}
	if lastRun.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
			sc.LastRun = &t
		}
	}
	return &sc, nil
}

// GetScript implements Store.
func (s *SQLiteStore) GetScript(ctx context.Context, id int64) (*model.Script, error) {
	var out *model.Script
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id)
		sc, err := scanScript(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &nonTransientError{ErrNotFound}
		}
		if err != nil {
			return fmt.Errorf("query script: %w", err)
		}
		out = sc
		return nil
	})
	if err != nil {
		return nil, unwrapNonTransient(err)
	}
	return out, nil
}

// FindScriptByPath implements Store.
func (s *SQLiteStore) FindScriptByPath(ctx context.Context, path string) (*model.Script, error) {
	var out *model.Script
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE path = ?`, path)
		sc, err := scanScript(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &nonTransientError{ErrNotFound}
		}
		if err != nil {
			return fmt.Errorf("query script by path: %w", err)
		}
		out = sc
		return nil
	})
	if err != nil {
		return nil, unwrapNonTransient(err)
	}
	return out, nil
}

// ListScripts implements Store.
func (s *SQLiteStore) ListScripts(ctx context.Context) ([]*model.Script, error) {
	var out []*model.Script
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+scriptColumns+` FROM scripts ORDER BY id`)
		if err != nil {
			return fmt.Errorf("list scripts: %w", err)
		}
		defer rows.Close()
		scripts := make([]*model.Script, 0)
		for rows.Next() {
			sc, err := scanScript(rows)
			if err != nil {
				return fmt.Errorf("scan script row: %w", err)
			}
			scripts = append(scripts, sc)
		}
		out = scripts
		return rows.Err()
	})
	return out, unwrapNonTransient(err)
}

// ListRunningDaemons implements Store: daemon scripts whose last known
// status is "running" — the Health Checker's candidate set (§4.4 step 1).
func (s *SQLiteStore) ListRunningDaemons(ctx context.Context) ([]*model.Script, error) {
	var out []*model.Script
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE cron = ? AND last_status = ?`,
			model.DaemonCron, string(model.StatusRunning))
		if err != nil {
			return fmt.Errorf("list running daemons: %w", err)
		}
		defer rows.Close()
		scripts := make([]*model.Script, 0)
		for rows.Next() {
			sc, err := scanScript(rows)
			if err != nil {
				return fmt.Errorf("scan script row: %w", err)
			}
			scripts = append(scripts, sc)
		}
		out = scripts
		return rows.Err()
	})
	return out, unwrapNonTransient(err)
}

// UpdateScript implements Store (PUT /scripts/{id}: replace editable fields).
func (s *SQLiteStore) UpdateScript(ctx context.Context, sc *model.Script) error {
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE scripts SET name=?, path=?, type=?, arguments=?, cron=?, enabled=?, run_on_startup=?, description=?
			WHERE id=?`,
			sc.Name, sc.Path, string(sc.Type), sc.Arguments, sc.Cron, sc.Enabled, sc.RunOnStartup, sc.Description, sc.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicatePath
			}
			return fmt.Errorf("update script: %w", err)
		}
		return requireRowAffected(res)
	})
	return unwrapNonTransient(err)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return &nonTransientError{ErrNotFound}
	}
	return nil
}

// UpdateScriptRunStart implements Store: marks a script as running and
// stamps last_run, as Supervisor.run does on admission (§4.1).
func (s *SQLiteStore) UpdateScriptRunStart(ctx context.Context, id int64, startedAt time.Time) error {
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE scripts SET last_status=?, last_run=? WHERE id=?`,
			string(model.StatusRunning), startedAt.UTC().Format(time.RFC3339Nano), id)
		if err != nil {
			return fmt.Errorf("update run start: %w", err)
		}
		return requireRowAffected(res)
	})
	return unwrapNonTransient(err)
}

// UpdateScriptStatus implements Store: the terminal status write Supervisor
// performs when a run completes (§4.1).
func (s *SQLiteStore) UpdateScriptStatus(ctx context.Context, id int64, status model.RunStatus, lastOutput string) error {
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE scripts SET last_status=?, last_output=? WHERE id=?`,
			string(status), lastOutput, id)
		if err != nil {
			return fmt.Errorf("update script status: %w", err)
		}
		return requireRowAffected(res)
	})
	return unwrapNonTransient(err)
}

// DeleteScript implements Store.
func (s *SQLiteStore) DeleteScript(ctx context.Context, id int64) error {
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete script: %w", err)
		}
		return requireRowAffected(res)
	})
	return unwrapNonTransient(err)
}

// ResetRunningToIdle implements Store: Bootstrap step 6, "a previous run was
// terminated by process exit".
func (s *SQLiteStore) ResetRunningToIdle(ctx context.Context) (int, error) {
	var n int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE scripts SET last_status=? WHERE last_status=?`,
			string(model.StatusIdle), string(model.StatusRunning))
		if err != nil {
			return fmt.Errorf("reset running statuses: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), unwrapNonTransient(err)
}

// GetSetting implements Store.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key)
		switch err := row.Scan(&value); {
		case errors.Is(err, sql.ErrNoRows):
			found = false
			return nil
		case err != nil:
			return fmt.Errorf("get setting: %w", err)
		default:
			found = true
			return nil
		}
	})
	return value, found, unwrapNonTransient(err)
}

// ListSettings implements Store.
func (s *SQLiteStore) ListSettings(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
		if err != nil {
			return fmt.Errorf("list settings: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return fmt.Errorf("scan setting row: %w", err)
			}
			out[k] = v
		}
		return rows.Err()
	})
	return out, unwrapNonTransient(err)
}

// SetSetting implements Store (upsert).
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("set setting: %w", err)
		}
		return nil
	})
	return unwrapNonTransient(err)
}

var _ Store = (*SQLiteStore)(nil)
