package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/code-payments/flipchat-entitlements/iap"
)

const (
	BackendMemory   = "memory"
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
)

const (
	envProductIDs             = "IAP_PRODUCT_IDS"
	envConsumableGrants       = "IAP_CONSUMABLE_GRANTS"
	envDefaultConsumableGrant = "IAP_DEFAULT_CONSUMABLE_GRANT"
	envLatestTransactionTTL   = "IAP_LATEST_TRANSACTION_TTL"
	envCatalogMaxAge          = "IAP_CATALOG_MAX_AGE"
	envKVBackend              = "IAP_KV_BACKEND"
	envSqliteDir              = "IAP_SQLITE_DIR"
	envDatabaseUrl            = "IAP_DATABASE_URL"
	envDatabaseDriver         = "IAP_DATABASE_DRIVER"
	envLogDevelopment         = "IAP_LOG_DEVELOPMENT"
)

type Config struct {
	ProductIDs             []string
	ConsumableGrants       map[string]int64
	DefaultConsumableGrant int64
	LatestTransactionTTL   time.Duration
	CatalogMaxAge          time.Duration

	KVBackend      string
	SqliteDir      string
	DatabaseUrl    string
	DatabaseDriver string

	LogDevelopment bool
}

// Load reads the optional .env files, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DefaultConsumableGrant: iap.DefaultConsumableGrant,
		CatalogMaxAge:          iap.DefaultCatalogMaxAge,
		KVBackend:              BackendMemory,
		SqliteDir:              ".entitlements",
	}

	cfg.ProductIDs = splitList(getenv(envProductIDs))

	grants, err := parseGrants(getenv(envConsumableGrants))
	if err != nil {
		return nil, err
	}
	cfg.ConsumableGrants = grants

	if v := getenv(envDefaultConsumableGrant); v != "" {
		grant, err := strconv.ParseInt(v, 10, 64)
		if err != nil || grant <= 0 {
			return nil, errors.Errorf("%s must be a positive integer, got %q", envDefaultConsumableGrant, v)
		}
		cfg.DefaultConsumableGrant = grant
	}

	if cfg.LatestTransactionTTL, err = parseDuration(getenv, envLatestTransactionTTL, 0); err != nil {
		return nil, err
	}
	if cfg.CatalogMaxAge, err = parseDuration(getenv, envCatalogMaxAge, cfg.CatalogMaxAge); err != nil {
		return nil, err
	}

	if v := getenv(envKVBackend); v != "" {
		cfg.KVBackend = strings.ToLower(v)
	}
	switch cfg.KVBackend {
	case BackendMemory, BackendSqlite, BackendPostgres:
	default:
		return nil, errors.Errorf("unsupported %s %q", envKVBackend, cfg.KVBackend)
	}

	if v := getenv(envSqliteDir); v != "" {
		cfg.SqliteDir = v
	}

	cfg.DatabaseUrl = getenv(envDatabaseUrl)
	cfg.DatabaseDriver = getenv(envDatabaseDriver)
	if cfg.KVBackend == BackendPostgres && cfg.DatabaseUrl == "" {
		return nil, errors.Errorf("%s is required for the postgres backend", envDatabaseUrl)
	}

	if v := getenv(envLogDevelopment); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", envLogDevelopment)
		}
		cfg.LogDevelopment = dev
	}

	return cfg, nil
}

// Manager returns the entitlement manager configuration.
func (c *Config) Manager() iap.Config {
	return iap.Config{
		ProductIDs:             c.ProductIDs,
		ConsumableGrants:       c.ConsumableGrants,
		DefaultConsumableGrant: c.DefaultConsumableGrant,
		LatestTransactionTTL:   c.LatestTransactionTTL,
		CatalogMaxAge:          c.CatalogMaxAge,
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseGrants parses "id=amount" pairs, e.g. "extra_life=3,coins=100".
func parseGrants(v string) (map[string]int64, error) {
	grants := make(map[string]int64)
	for _, pair := range splitList(v) {
		id, amount, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, errors.Errorf("invalid consumable grant %q", pair)
		}

		grant, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || grant <= 0 {
			return nil, errors.Errorf("invalid consumable grant amount for %q", id)
		}
		grants[id] = grant
	}
	return grants, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must not be negative", key)
	}
	return d, nil
}
