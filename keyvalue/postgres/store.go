package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/flipchat-entitlements/keyvalue"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	DriverPgx   = "pgx"
	DriverNrPgx = "nrpgx"
)

type pgStore struct {
	db *sqlx.DB
}

// Open connects to Postgres using driver, which is either DriverPgx or the
// New Relic instrumented DriverNrPgx.
func Open(driver, databaseUrl string) (*sql.DB, error) {
	switch driver {
	case "", DriverPgx:
		driver = DriverPgx
	case DriverNrPgx:
	default:
		return nil, errors.Errorf("unsupported postgres driver %q", driver)
	}

	db, err := sql.Open(driver, databaseUrl)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return db, nil
}

// CreateSchema creates the key-value tables if they don't exist.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "create key-value schema")
}

func NewInPostgres(db *sql.DB) keyvalue.Store {
	return &pgStore{
		db: sqlx.NewDb(db, DriverPgx),
	}
}

func (s *pgStore) reset() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		panic(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM `+boolTable)
	if err != nil {
		panic(err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM `+intTable)
	if err != nil {
		panic(err)
	}
}

func (s *pgStore) GetBool(ctx context.Context, key string) (bool, error) {
	var m boolModel
	query := `SELECT "key", "value", "createdAt", "updatedAt" FROM ` + boolTable + ` WHERE "key" = $1`
	err := s.db.GetContext(ctx, &m, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, keyvalue.ErrNotFound
		}
		return false, errors.Wrapf(err, "get bool %q", key)
	}
	return m.Value, nil
}

func (s *pgStore) SetBool(ctx context.Context, key string, value bool) error {
	currentTime := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+boolTable+` ("key", "value", "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value", "updatedAt" = EXCLUDED."updatedAt"
	`, key, value, currentTime, currentTime)
	if err != nil {
		return errors.Wrapf(err, "set bool %q", key)
	}
	return nil
}

func (s *pgStore) GetInt(ctx context.Context, key string) (int64, error) {
	var m intModel
	query := `SELECT "key", "value", "createdAt", "updatedAt" FROM ` + intTable + ` WHERE "key" = $1`
	err := s.db.GetContext(ctx, &m, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, keyvalue.ErrNotFound
		}
		return 0, errors.Wrapf(err, "get int %q", key)
	}
	return m.Value, nil
}

func (s *pgStore) SetInt(ctx context.Context, key string, value int64) error {
	if value < 0 {
		return keyvalue.ErrInvalidValue
	}

	currentTime := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+intTable+` ("key", "value", "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value", "updatedAt" = EXCLUDED."updatedAt"
	`, key, value, currentTime, currentTime)
	if err != nil {
		return errors.Wrapf(err, "set int %q", key)
	}
	return nil
}
