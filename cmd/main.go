package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-entitlements/config"
	"github.com/code-payments/flipchat-entitlements/event"
	"github.com/code-payments/flipchat-entitlements/iap"
	"github.com/code-payments/flipchat-entitlements/iap/memory"
	"github.com/code-payments/flipchat-entitlements/keyvalue"
	kvmemory "github.com/code-payments/flipchat-entitlements/keyvalue/memory"
	"github.com/code-payments/flipchat-entitlements/keyvalue/postgres"
	"github.com/code-payments/flipchat-entitlements/keyvalue/sqlite"
)

// Runs a scripted purchase session against the simulated store, persisting
// entitlements in the configured key-value backend.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := zap.Must(zap.NewProduction())
	if cfg.LogDevelopment {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	ctx := context.Background()

	kv, closeKV, err := newKeyValueStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open key-value store", zap.Error(err))
	}
	defer closeKV()

	store := memory.NewInMemory(sandboxCatalog(cfg)...)

	bus := event.NewBus[iap.Change]()
	bus.AddHandler(event.HandlerFunc[iap.Change](func(change iap.Change) {
		logger.Debug("Entitlements changed",
			zap.Stringer("kind", change.Kind),
			zap.String("product_id", change.ProductID),
		)
	}))

	registry := prometheus.NewRegistry()
	manager := iap.NewManager(logger, cfg.Manager(), store, kv, bus, iap.NewMetrics(registry))
	defer manager.Close()

	manager.RefreshProductsIfStale(ctx)

	for _, product := range manager.Products() {
		ok := manager.Purchase(ctx, product)
		logger.Info("Purchased product",
			zap.String("product_id", product.ID),
			zap.Stringer("kind", product.Kind),
			zap.String("price", product.Price.StringFixed(2)),
			zap.Bool("ok", ok),
			zap.Bool("owned", manager.IsPurchased(ctx, product.ID)),
			zap.Int64("balance", manager.ConsumableAmountFor(ctx, product.ID)),
		)
	}

	manager.RestorePurchases(ctx)

	logger.Info("Session complete", zap.Strings("purchased", manager.PurchasedProducts()))

	families, err := registry.Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			logger.Info("Metric",
				zap.String("name", family.GetName()),
				zap.Any("labels", metric.GetLabel()),
				zap.Float64("value", metric.GetCounter().GetValue()),
			)
		}
	}
}

func newKeyValueStore(ctx context.Context, cfg *config.Config) (keyvalue.Store, func(), error) {
	switch cfg.KVBackend {
	case config.BackendSqlite:
		s, err := sqlite.NewInSqlite(cfg.SqliteDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendPostgres:
		db, err := postgres.Open(cfg.DatabaseDriver, cfg.DatabaseUrl)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.CreateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.NewInPostgres(db), func() { _ = db.Close() }, nil
	default:
		return kvmemory.NewInMemory(), func() {}, nil
	}
}

// sandboxCatalog prices every configured product at 0.99. Products with a
// consumable grant are sold as consumables.
func sandboxCatalog(cfg *config.Config) []*iap.Product {
	var products []*iap.Product
	for _, id := range cfg.ProductIDs {
		kind := iap.ProductKindNonConsumable
		if _, ok := cfg.ConsumableGrants[id]; ok {
			kind = iap.ProductKindConsumable
		}

		products = append(products, &iap.Product{
			ID:           id,
			DisplayName:  id,
			Price:        decimal.RequireFromString("0.99"),
			CurrencyCode: "USD",
			Kind:         kind,
		})
	}
	return products
}
