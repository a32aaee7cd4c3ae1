// Package sqlite stores values in the keyv table layout the panel uses:
// one row per "<namespace>:<key>", the value wrapped in a
// {"value": ..., "expires": ...} JSON envelope.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/99minutos/create-admin/internal/core/ports"
)

const (
	DefaultNamespace = "keyv"
	defaultTimeout   = 5 * time.Second

	createTable = `CREATE TABLE IF NOT EXISTS keyv (key VARCHAR(255) PRIMARY KEY, value TEXT)`

	// insertOrReplaceExpired writes a new row, or takes over a row whose
	// envelope has expired. A live row is left alone.
	insertOrReplaceExpired = `INSERT INTO keyv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		WHERE json_extract(keyv.value, '$.expires') IS NOT NULL
		  AND json_extract(keyv.value, '$.expires') <= ?`
)

// Config captures the settings for opening the database file.
type Config struct {
	Path      string
	Namespace string
	Timeout   time.Duration
}

// Store is a KVStore over a keyv-compatible SQLite table.
type Store struct {
	db        *sql.DB
	namespace string
	timeout   time.Duration
	now       func() time.Time
}

type envelope struct {
	Value   json.RawMessage `json:"value"`
	Expires *int64          `json:"expires"`
}

// Open opens (or creates) the database file and ensures the keyv table exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", cfg.Path, err)
	}
	// A single connection keeps the busy timeout pragma in effect for every statement.
	db.SetMaxOpenConns(1)

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stmts := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()),
		createTable,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(initCtx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite init %s: %w", cfg.Path, err)
		}
	}

	return &Store{db: db, namespace: ns, timeout: timeout, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stored, err := s.raw(ctx, key)
	if err != nil {
		return nil, err
	}
	env, err := s.decode(key, stored)
	if err != nil {
		return nil, err
	}
	if s.expired(env) {
		return nil, ports.ErrKeyNotFound
	}
	return env.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stored, err := encode(value)
	if err != nil {
		return fmt.Errorf("sqlite encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO keyv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		s.key(key), stored)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap conditions the write on the exact row text that was read,
// so a concurrent writer makes the statement affect zero rows. With a nil old
// an expired row counts as absent, matching Get.
func (s *Store) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	next, err := encode(value)
	if err != nil {
		return false, fmt.Errorf("sqlite encode %s: %w", key, err)
	}

	if old == nil {
		res, err := s.db.ExecContext(ctx, insertOrReplaceExpired,
			s.key(key), next, s.now().UnixMilli())
		if err != nil {
			return false, fmt.Errorf("sqlite insert %s: %w", key, err)
		}
		return affectedOne(res)
	}

	stored, err := s.raw(ctx, key)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	env, err := s.decode(key, stored)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(env.Value, old) {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE keyv SET value = ? WHERE key = ? AND value = ?`,
		next, s.key(key), stored)
	if err != nil {
		return false, fmt.Errorf("sqlite update %s: %w", key, err)
	}
	return affectedOne(res)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) raw(ctx context.Context, key string) (string, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM keyv WHERE key = ?`, s.key(key)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return stored, nil
}

func (s *Store) decode(key, stored string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(stored), &env); err != nil {
		return envelope{}, fmt.Errorf("sqlite decode %s: %w", key, err)
	}
	return env, nil
}

// expired follows keyv: expires is a unix timestamp in milliseconds.
func (s *Store) expired(env envelope) bool {
	return env.Expires != nil && *env.Expires <= s.now().UnixMilli()
}

func (s *Store) key(name string) string {
	return s.namespace + ":" + name
}

func encode(value []byte) (string, error) {
	b, err := json.Marshal(envelope{Value: value})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
