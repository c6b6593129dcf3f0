package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/code-payments/flipchat-entitlements/keyvalue"

	_ "modernc.org/sqlite"
)

const (
	dbFileName     = "entitlements.db"
	privateDirPerm = 0o700

	boolTable = "iap_bool_values"
	intTable  = "iap_int_values"
)

// Store persists values in a local SQLite file. The directory is created
// owner-only since it holds entitlement state.
type Store struct {
	db *sql.DB
}

// NewInSqlite opens (or creates) the entitlement database in dir.
func NewInSqlite(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("dir is required")
	}
	if err := os.MkdirAll(dir, privateDirPerm); err != nil {
		return nil, errors.Wrap(err, "create key-value store dir")
	}
	if err := os.Chmod(dir, privateDirPerm); err != nil {
		return nil, errors.Wrap(err, "restrict key-value store dir")
	}

	dsn := filepath.Join(dir, dbFileName) + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(FULL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open key-value db")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + boolTable + ` (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ` + intTable + ` (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value >= 0)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "init key-value schema")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) reset() {
	for _, table := range []string{boolTable, intTable} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			panic(err)
		}
	}
}

func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+boolTable+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, keyvalue.ErrNotFound
	} else if err != nil {
		return false, errors.Wrapf(err, "get bool %q", key)
	}
	return value != 0, nil
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	var encoded int64
	if value {
		encoded = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+boolTable+` (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, encoded)
	if err != nil {
		return errors.Wrapf(err, "set bool %q", key)
	}
	return nil
}

func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+intTable+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, keyvalue.ErrNotFound
	} else if err != nil {
		return 0, errors.Wrapf(err, "get int %q", key)
	}
	return value, nil
}

func (s *Store) SetInt(ctx context.Context, key string, value int64) error {
	if value < 0 {
		return keyvalue.ErrInvalidValue
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+intTable+` (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errors.Wrapf(err, "set int %q", key)
	}
	return nil
}
