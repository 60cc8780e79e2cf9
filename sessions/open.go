package sessions

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/pkg/errors"

	"github.com/panyam/credauth"
	"github.com/panyam/credauth/config"
)

// Open builds the session table named by cfg.Driver.  lifeWindow is the
// longest ttl the table must honour; the cache driver sizes its eviction
// window from it.
func Open(ctx context.Context, cfg config.SessionsConfig, lifeWindow time.Duration) (credauth.SessionTable, func() error, error) {
	switch cfg.Driver {
	case "", "scs":
		return NewSCSTable(memstore.New()), func() error { return nil }, nil
	case "cache":
		table, err := NewCacheTable(ctx, lifeWindow)
		if err != nil {
			return nil, func() error { return nil }, err
		}
		return table, table.Close, nil
	}
	return nil, func() error { return nil }, errors.Wrapf(credauth.ErrConfiguration, "unknown sessions driver %q", cfg.Driver)
}
