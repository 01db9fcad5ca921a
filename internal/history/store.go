package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sample is one throughput observation: the number of documents emitted by
// final-stage workers at a point in time.
type Sample struct {
	RunID string
	Time  time.Time
	Docs  int64
}

// Store journals throughput samples in SQLite so a restarted monitor can
// resume its throughput estimate.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append records one sample.
func (s *Store) Append(ctx context.Context, sample Sample) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO throughput_samples (run_id, sampled_at, docs) VALUES (?, ?, ?)",
			sample.RunID, sample.Time.UnixMilli(), sample.Docs,
		)
		return err
	})
}

// Recent returns up to limit of the newest samples in chronological order.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, nil
	}
	var samples []Sample
	err := retryOnBusy(ctx, func() error {
		samples = samples[:0]
		rows, err := s.db.QueryContext(ctx,
			`SELECT run_id, sampled_at, docs FROM (
				SELECT id, run_id, sampled_at, docs FROM throughput_samples
				ORDER BY sampled_at DESC, id DESC LIMIT ?
			) ORDER BY sampled_at ASC, id ASC`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				sample Sample
				millis int64
			)
			if err := rows.Scan(&sample.RunID, &millis, &sample.Docs); err != nil {
				return err
			}
			sample.Time = time.UnixMilli(millis)
			samples = append(samples, sample)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query recent samples: %w", err)
	}
	return samples, nil
}

// Prune keeps only the newest keep samples.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM throughput_samples WHERE id NOT IN (
				SELECT id FROM throughput_samples ORDER BY sampled_at DESC, id DESC LIMIT ?
			)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}
	return removed, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
