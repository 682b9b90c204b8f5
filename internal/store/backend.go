package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/config"
	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/logging"
)

const mongoIndexTimeout = 5 * time.Second

// Backend bundles the group and login stores of the configured driver with
// its lifecycle hooks.
type Backend struct {
	Driver string
	Groups domain.GroupStore
	Logins domain.LoginStore

	ping  func(context.Context) error
	close func(context.Context) error
}

// Open connects to the store selected by cfg.StoreDriver and prepares its
// schema or indexes.
func Open(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Backend, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		manager, err := NewManager(ctx, cfg)
		if err != nil {
			return nil, err
		}

		indexCtx, cancel := context.WithTimeout(ctx, mongoIndexTimeout)
		defer cancel()
		if err := manager.EnsureBaseIndexes(indexCtx); err != nil {
			_ = manager.Close(ctx)
			return nil, err
		}

		logger.WithFields(logging.Fields{
			"event":    "store_ready",
			"driver":   cfg.StoreDriver,
			"mongo_db": cfg.MongoDB,
		}).Info("connected to mongo and ensured indexes")

		return &Backend{
			Driver: cfg.StoreDriver,
			Groups: manager.GroupStore(logger),
			Logins: manager.LoginStore(),
			ping:   manager.Ping,
			close:  manager.Close,
		}, nil
	case config.DriverSQLite, config.DriverMySQL:
		sqlStore, err := OpenSQL(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		logger.WithFields(logging.Fields{
			"event":  "store_ready",
			"driver": cfg.StoreDriver,
		}).Info("opened sql store and migrated schema")

		return &Backend{
			Driver: cfg.StoreDriver,
			Groups: sqlStore.Groups(),
			Logins: sqlStore.Logins(),
			ping:   sqlStore.Ping,
			close:  sqlStore.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// Ping checks connectivity of the underlying store.
func (b *Backend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return errors.New("store backend is not initialized")
	}
	return b.ping(ctx)
}

// Close releases the underlying store.
func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}
