// Package stores selects an AccountStore backend from configuration.  The
// backends themselves live in the subpackages.
package stores

import (
	"context"

	"cloud.google.com/go/datastore"
	"github.com/pkg/errors"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/config"
	"github.com/panyam/credauth/internal/logutil"
	"github.com/panyam/credauth/stores/fs"
	"github.com/panyam/credauth/stores/gae"
	gormstore "github.com/panyam/credauth/stores/gorm"
	"github.com/panyam/credauth/stores/mem"
	mongostore "github.com/panyam/credauth/stores/mongo"
)

// Open builds the store named by cfg.Driver.  The returned close func
// releases client connections and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (oa.AccountStore, func() error, error) {
	noop := func() error { return nil }
	log := logutil.GetOrDefault(ctx)

	switch cfg.Driver {
	case "", "memory":
		log.Warn().Msg("Using in-memory account store; accounts are lost on restart")
		return mem.New(), noop, nil

	case "fs":
		if cfg.Path == "" {
			return nil, noop, errors.Wrap(oa.ErrConfiguration, "store.path is required for the fs driver")
		}
		return fs.New(cfg.Path), noop, nil

	case "sqlite", "postgres":
		db, err := gormstore.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, errors.Wrapf(oa.ErrStoreUnavailable, "%v", err)
		}
		store, err := gormstore.New(db)
		if err != nil {
			sqlDB.Close()
			return nil, noop, err
		}
		return store, sqlDB.Close, nil

	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.Project)
		if err != nil {
			return nil, noop, errors.Wrapf(oa.ErrStoreUnavailable, "datastore client: %v", err)
		}
		return gae.New(client, cfg.Namespace), client.Close, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		disconnect := func() error { return client.Disconnect(context.Background()) }
		store, err := mongostore.New(ctx, client.Database(cfg.Database))
		if err != nil {
			disconnect()
			return nil, noop, err
		}
		return store, disconnect, nil
	}
	return nil, noop, errors.Wrapf(oa.ErrConfiguration, "unknown store driver %q", cfg.Driver)
}
