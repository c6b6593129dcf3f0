package iap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_GrantFor(t *testing.T) {
	var cfg Config
	require.EqualValues(t, DefaultConsumableGrant, cfg.GrantFor("extra_life"))

	cfg.DefaultConsumableGrant = 10
	require.EqualValues(t, 10, cfg.GrantFor("extra_life"))

	cfg.ConsumableGrants = map[string]int64{"extra_life": 1}
	require.EqualValues(t, 1, cfg.GrantFor("extra_life"))
	require.EqualValues(t, 10, cfg.GrantFor("coins"))

	cfg.ConsumableGrants = map[string]int64{"extra_life": 0, "coins": -2}
	require.EqualValues(t, 10, cfg.GrantFor("extra_life"))
	require.EqualValues(t, 10, cfg.GrantFor("coins"))
}

func TestConfig_ProductIDSet(t *testing.T) {
	cfg := Config{ProductIDs: []string{"b", "a", "", "b"}}

	set, ids := cfg.productIDSet()
	require.Len(t, set, 2)
	require.Equal(t, []string{"a", "b"}, ids)
}

func TestConfig_CatalogMaxAge(t *testing.T) {
	require.Equal(t, DefaultCatalogMaxAge, Config{}.catalogMaxAge())
	require.Equal(t, time.Minute, Config{CatalogMaxAge: time.Minute}.catalogMaxAge())
}
