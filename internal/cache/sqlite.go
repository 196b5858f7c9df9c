// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/metrics"
)

const (
	sqliteFileName = "cache.db"
	sqliteBackup   = "cache.db.bak"

	// replayBatch is the number of pages a Reader loads per query.
	replayBatch = 64
)

// SQLiteStore keeps the page log in a SQLite database file inside a
// repository-specific directory. The backup snapshot is a sibling file.
type SQLiteStore struct {
	dir        string
	path       string
	backupPath string
	db         *sql.DB
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// OpenSQLite opens (creating if needed) the page log in dir.
func OpenSQLite(dir string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s (%w): %w", dir, relayerrors.ErrCacheUnavailable, err)
	}

	s := &SQLiteStore{
		dir:        dir,
		path:       filepath.Join(dir, sqliteFileName),
		backupPath: filepath.Join(dir, sqliteBackup),
		logger:     opts.logger(),
		metrics:    opts.Metrics,
	}

	db, err := sql.Open("sqlite", sqliteDSN(s.path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s (%w): %w", s.path, relayerrors.ErrCacheUnavailable, err)
	}
	// One writer; readers load in short batches so they never hold a lock
	// across a consumer pull.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(DELETE)" +
		"&_pragma=synchronous(FULL)"
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pages (
			seq     INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize cache %s (%w): %w", s.path, relayerrors.ErrCacheUnavailable, err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Append inserts pages in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, pages ...string) error {
	if len(pages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.storageError("append", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages (payload) VALUES (?)`)
	if err != nil {
		return s.storageError("append", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		if _, err := stmt.ExecContext(ctx, page); err != nil {
			return s.storageError("append", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.storageError("append", err)
	}

	s.metrics.PagesAppended(len(pages))
	s.logger.Debug().Int("pages", len(pages)).Msg("Appended pages to cache")
	return nil
}

// Retrieve replays the pages present when it is called, in append order.
func (s *SQLiteStore) Retrieve(ctx context.Context) (*Reader, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("cache %s is not readable (%w): %w", s.path, relayerrors.ErrCacheUnavailable, err)
	}

	var upper sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM pages`).Scan(&upper); err != nil {
		return nil, s.storageError("retrieve", err)
	}
	if !upper.Valid {
		return newReader(func(context.Context) (string, bool, error) { return "", false, nil }, nil), nil
	}

	var (
		after   int64
		pending []string
	)
	fetch := func(ctx context.Context) (string, bool, error) {
		if len(pending) == 0 {
			batch, last, err := s.loadBatch(ctx, after, upper.Int64)
			if err != nil {
				return "", false, err
			}
			if len(batch) == 0 {
				return "", false, nil
			}
			pending, after = batch, last
		}
		page := pending[0]
		pending = pending[1:]
		return page, true, nil
	}
	return newReader(fetch, nil), nil
}

func (s *SQLiteStore) loadBatch(ctx context.Context, after, upper int64) ([]string, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload FROM pages WHERE seq > ? AND seq <= ? ORDER BY seq LIMIT ?`,
		after, upper, replayBatch)
	if err != nil {
		return nil, after, s.storageError("retrieve", err)
	}
	defer rows.Close()

	var batch []string
	last := after
	for rows.Next() {
		var payload string
		if err := rows.Scan(&last, &payload); err != nil {
			return nil, after, s.storageError("retrieve", err)
		}
		batch = append(batch, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, after, s.storageError("retrieve", err)
	}
	return batch, last, nil
}

// Backup writes a consistent copy of the database next to it. The copy is
// built in a temporary file and renamed into place, so an interrupted
// backup never replaces a good one.
func (s *SQLiteStore) Backup(ctx context.Context) error {
	tmp := s.backupPath + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return s.storageError("backup", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(tmp)); err != nil {
		_ = os.Remove(tmp)
		return s.storageError("backup", err)
	}

	if err := syncFile(tmp); err != nil {
		_ = os.Remove(tmp)
		return s.storageError("backup", err)
	}

	if err := os.Rename(tmp, s.backupPath); err != nil {
		_ = os.Remove(tmp)
		return s.storageError("backup", err)
	}

	s.metrics.CacheOperation("backup")
	s.logger.Info().Str("backup", s.backupPath).Msg("Cache backed up")
	return nil
}

// Recover replaces the page log with the content of the backup in one
// transaction.
func (s *SQLiteStore) Recover(ctx context.Context) error {
	if _, err := os.Stat(s.backupPath); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn().Msg("No cache backup to recover from")
			return nil
		}
		return s.storageError("recover", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return s.storageError("recover", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE "+quoteLiteral(s.backupPath)+" AS bak"); err != nil {
		return s.storageError("recover", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "DETACH DATABASE bak")
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.storageError("recover", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM main.pages`); err != nil {
		return s.storageError("recover", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO main.pages (seq, payload) SELECT seq, payload FROM bak.pages ORDER BY seq`); err != nil {
		return s.storageError("recover", err)
	}
	if err := tx.Commit(); err != nil {
		return s.storageError("recover", err)
	}

	s.metrics.CacheOperation("recover")
	s.logger.Info().Str("backup", s.backupPath).Msg("Cache recovered from backup")
	return nil
}

// Clean snapshots the log and then empties it.
func (s *SQLiteStore) Clean(ctx context.Context) error {
	if err := s.Backup(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages`); err != nil {
		return s.storageError("clean", err)
	}

	s.metrics.CacheOperation("clean")
	s.logger.Info().Str("path", s.path).Msg("Cache cleaned")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("cache %s interrupted: %w", op, err)
	}
	return fmt.Errorf("cache %s failed on %s (%w): %w", op, s.path, relayerrors.ErrCacheUnavailable, err)
}

// quoteLiteral quotes s as an SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
