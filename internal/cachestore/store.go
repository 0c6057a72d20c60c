// File: internal/cachestore/store.go
// Brief: Durable sqlite cache for secret records, tracked files, and skip predicates.

// Package cachestore persists the launcher's cache between invocations: the
// resolved secret map (24h TTL, with provenance), content digests of tracked
// source files for early invalidation, and per-category digests that back
// the scheduler's cache-skip decisions.
package cachestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSQLiteRelPath = ".devup/cache.sqlite"

// DefaultTTL is how long a persisted secret record stays valid absent a
// tracked-file change.
const DefaultTTL = 24 * time.Hour

// Record is one cached secret value plus its provenance and validity summary.
type Record struct {
	Key       string
	Value     string
	Source    string
	Valid     bool
	ExpiresAt time.Time
}

// Predicate reports whether a named category is unchanged since the last
// successful run. True means unchanged (safe to skip).
type Predicate func(ctx context.Context) (bool, error)

type Store struct {
	db   *sql.DB
	path string

	mu         sync.Mutex
	predicates map[string]Predicate
}

// Open opens (creating if needed) the cache database under root.
func Open(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, cacheSQLiteRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path, predicates: map[string]Predicate{}}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS secret_cache (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			valid INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tracked_files (
			path TEXT PRIMARY KEY,
			digest TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS category_digests (
			category TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init cache schema: %w", err)
		}
	}
	return nil
}

// Put stores a secret record with the given TTL.
func (s *Store) Put(ctx context.Context, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secret_cache(key, value, source, valid, created_at, expires_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value=excluded.value, source=excluded.source, valid=excluded.valid,
		   created_at=excluded.created_at, expires_at=excluded.expires_at`,
		rec.Key, rec.Value, rec.Source, boolToInt(rec.Valid), now.UnixNano(),
		now.Add(ttl).UnixNano())
	return err
}

// Get returns the record for key if present and unexpired.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, source, valid, expires_at FROM secret_cache WHERE key = ?`, key)
	var rec Record
	var valid int
	var expires int64
	if err := row.Scan(&rec.Key, &rec.Value, &rec.Source, &valid, &expires); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	rec.Valid = valid != 0
	rec.ExpiresAt = time.Unix(0, expires).UTC()
	if time.Now().UTC().After(rec.ExpiresAt) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// IsCachedAndValid reports whether key has an unexpired record marked valid.
func (s *Store) IsCachedAndValid(ctx context.Context, key string) bool {
	rec, ok, err := s.Get(ctx, key)
	return err == nil && ok && rec.Valid
}

// All returns every unexpired record keyed by secret key.
func (s *Store) All(ctx context.Context) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, source, valid, expires_at FROM secret_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	now := time.Now().UTC()
	out := map[string]Record{}
	for rows.Next() {
		var rec Record
		var valid int
		var expires int64
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.Source, &valid, &expires); err != nil {
			return nil, err
		}
		rec.Valid = valid != 0
		rec.ExpiresAt = time.Unix(0, expires).UTC()
		if now.After(rec.ExpiresAt) {
			continue
		}
		out[rec.Key] = rec
	}
	return out, rows.Err()
}

// InvalidateSecrets drops every cached secret record.
func (s *Store) InvalidateSecrets(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secret_cache`)
	return err
}

// TrackFiles records the current content digests of the given files so later
// runs can detect changes.
func (s *Store) TrackFiles(ctx context.Context, paths []string) error {
	for _, path := range paths {
		digest := digestOneFile(path)
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO tracked_files(path, digest) VALUES(?, ?)
			 ON CONFLICT(path) DO UPDATE SET digest=excluded.digest`,
			path, digest); err != nil {
			return err
		}
	}
	return nil
}

// HasSourceFilesChanged reports whether any of the given files differ from
// the digests last recorded by TrackFiles. An untracked path counts as
// changed.
func (s *Store) HasSourceFilesChanged(ctx context.Context, paths []string) (bool, error) {
	for _, path := range paths {
		row := s.db.QueryRowContext(ctx,
			`SELECT digest FROM tracked_files WHERE path = ?`, path)
		var stored string
		if err := row.Scan(&stored); err != nil {
			if err == sql.ErrNoRows {
				return true, nil
			}
			return false, err
		}
		if stored != digestOneFile(path) {
			return true, nil
		}
	}
	return false, nil
}

// RegisterPredicate installs a named category predicate for skip decisions.
func (s *Store) RegisterPredicate(name string, p Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predicates[name] = p
}

// Unchanged evaluates the named predicate. Unknown categories and predicate
// errors report changed: a skip decision is an optimization, never assumed.
func (s *Store) Unchanged(ctx context.Context, name string) bool {
	s.mu.Lock()
	p := s.predicates[name]
	s.mu.Unlock()
	if p == nil {
		return false
	}
	unchanged, err := p(ctx)
	if err != nil {
		return false
	}
	return unchanged
}

// CategoryDigest returns the stored digest for a category, if any.
func (s *Store) CategoryDigest(ctx context.Context, category string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT digest FROM category_digests WHERE category = ?`, category)
	var digest string
	if err := row.Scan(&digest); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return digest, true, nil
}

// CommitCategoryDigest stores the current digest of the category's inputs,
// typically after the matching step succeeds.
func (s *Store) CommitCategoryDigest(ctx context.Context, category string, paths ...string) error {
	digest, err := DigestFiles(paths...)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO category_digests(category, digest, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(category) DO UPDATE SET digest=excluded.digest, updated_at=excluded.updated_at`,
		category, digest, time.Now().UTC().UnixNano())
	return err
}

// FileDigestPredicate builds a predicate that reports unchanged while the
// combined digest of paths matches the digest last committed for category
// (e.g. "dependency manifest changed for service X").
func FileDigestPredicate(s *Store, category string, paths ...string) Predicate {
	return func(ctx context.Context) (bool, error) {
		stored, ok, err := s.CategoryDigest(ctx, category)
		if err != nil || !ok {
			return false, err
		}
		current, err := DigestFiles(paths...)
		if err != nil {
			return false, err
		}
		return stored == current, nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
