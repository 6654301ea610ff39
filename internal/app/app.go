// Package app wires configuration into a ready service: the store driver,
// the locker and the ledger service on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"caisse/internal/amountwords"
	"caisse/internal/config"
	"caisse/internal/db"
	"caisse/internal/lock"
	"caisse/internal/service"
	"caisse/internal/store"

	"github.com/redis/go-redis/v9"
)

type App struct {
	Service *service.Service
	Store   store.Store
	Locker  lock.Locker

	redis *redis.Client
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{Store: st}
	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		app.Locker = lock.NewRedis(app.redis, cfg.LockTTL, logger)
		logger.Info("using redis locks", slog.String("addr", cfg.RedisAddr))
	} else {
		app.Locker = lock.NewMemory()
	}

	app.Service = service.New(st, app.Locker, logger, service.Options{
		StrictProductLookup: cfg.StrictProductLookup,
		LockWait:            cfg.LockWait,
		Currency: amountwords.Currency{
			Unit:          cfg.CurrencyUnit,
			UnitPlural:    cfg.CurrencyUnitPlural,
			Subunit:       cfg.CurrencySubunit,
			SubunitPlural: cfg.CurrencySubunitPlural,
		},
	})
	return app, nil
}

// OpenStore opens the store selected by STORE_DRIVER. Postgres schemas are
// migrated before the store is returned.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		return store.NewPostgres(pool), nil
	case config.DriverSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath, cfg.DBDebug)
		if err != nil {
			return nil, err
		}
		st, err := store.NewGorm(gdb)
		if err != nil {
			if sqlDB, dbErr := gdb.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		logger.Warn("memory store selected, records are lost on exit")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
