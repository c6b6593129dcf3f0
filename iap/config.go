package iap

import (
	"sort"
	"time"
)

const (
	DefaultConsumableGrant = 3
	DefaultCatalogMaxAge   = time.Hour
)

type Config struct {
	// ProductIDs is the set of identifiers the manager is responsible for.
	ProductIDs []string

	// ConsumableGrants is the balance credited per purchase of a consumable.
	// Identifiers without a positive entry get DefaultConsumableGrant.
	ConsumableGrants       map[string]int64
	DefaultConsumableGrant int64

	// LatestTransactionTTL caches IsPurchased store lookups. Zero disables
	// the cache.
	LatestTransactionTTL time.Duration

	// CatalogMaxAge is how old the catalog may get before
	// RefreshProductsIfStale fetches it again.
	CatalogMaxAge time.Duration
}

func (c Config) GrantFor(productID string) int64 {
	if grant, ok := c.ConsumableGrants[productID]; ok && grant > 0 {
		return grant
	}
	if c.DefaultConsumableGrant > 0 {
		return c.DefaultConsumableGrant
	}
	return DefaultConsumableGrant
}

func (c Config) catalogMaxAge() time.Duration {
	if c.CatalogMaxAge > 0 {
		return c.CatalogMaxAge
	}
	return DefaultCatalogMaxAge
}

func (c Config) productIDSet() (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(c.ProductIDs))
	for _, id := range c.ProductIDs {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return set, ids
}
