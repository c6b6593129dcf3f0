package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(nil))
	require.NoError(t, err)

	require.Empty(t, cfg.ProductIDs)
	require.Empty(t, cfg.ConsumableGrants)
	require.EqualValues(t, 3, cfg.DefaultConsumableGrant)
	require.Equal(t, time.Duration(0), cfg.LatestTransactionTTL)
	require.Equal(t, time.Hour, cfg.CatalogMaxAge)
	require.Equal(t, BackendMemory, cfg.KVBackend)
	require.False(t, cfg.LogDevelopment)
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		envProductIDs:             "gold100, extra_life ,,premium",
		envConsumableGrants:       "extra_life=5",
		envDefaultConsumableGrant: "2",
		envLatestTransactionTTL:   "30s",
		envCatalogMaxAge:          "10m",
		envKVBackend:              "SQLITE",
		envSqliteDir:              "/tmp/iap",
		envLogDevelopment:         "true",
	}))
	require.NoError(t, err)

	require.Equal(t, []string{"gold100", "extra_life", "premium"}, cfg.ProductIDs)
	require.Equal(t, map[string]int64{"extra_life": 5}, cfg.ConsumableGrants)
	require.EqualValues(t, 2, cfg.DefaultConsumableGrant)
	require.Equal(t, 30*time.Second, cfg.LatestTransactionTTL)
	require.Equal(t, 10*time.Minute, cfg.CatalogMaxAge)
	require.Equal(t, BackendSqlite, cfg.KVBackend)
	require.Equal(t, "/tmp/iap", cfg.SqliteDir)
	require.True(t, cfg.LogDevelopment)

	managerCfg := cfg.Manager()
	require.Equal(t, cfg.ProductIDs, managerCfg.ProductIDs)
	require.EqualValues(t, 5, managerCfg.GrantFor("extra_life"))
	require.EqualValues(t, 2, managerCfg.GrantFor("gold100"))
}

func TestFromEnv_Invalid(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"Grant":          {envConsumableGrants: "extra_life"},
		"GrantAmount":    {envConsumableGrants: "extra_life=-1"},
		"DefaultGrant":   {envDefaultConsumableGrant: "zero"},
		"TTL":            {envLatestTransactionTTL: "soon"},
		"NegativeMaxAge": {envCatalogMaxAge: "-1m"},
		"Backend":        {envKVBackend: "redis"},
		"PostgresUrl":    {envKVBackend: BackendPostgres},
		"LogDevelopment": {envLogDevelopment: "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envFrom(env))
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("IAP_PRODUCT_IDS=gold100\n"), 0o600))

	t.Setenv(envProductIDs, "")
	require.NoError(t, os.Unsetenv(envProductIDs))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"gold100"}, cfg.ProductIDs)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
