// Package bootstrap assembles a Verifier and its collaborators from a loaded
// config.  Both the server and the operator commands start here.
package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/config"
	"github.com/panyam/credauth/internal/logutil"
	"github.com/panyam/credauth/sessions"
	"github.com/panyam/credauth/stores"
)

type Runtime struct {
	Config   *config.Config
	Log      zerolog.Logger
	Store    oa.AccountStore
	Verifier *oa.Verifier

	closers []func() error
}

// Open builds the logger, protector, account store and session table named
// by cfg.  The returned context carries the logger.
func Open(ctx context.Context, cfg *config.Config) (context.Context, *Runtime, error) {
	rt := &Runtime{Config: cfg, Log: logutil.New(cfg.Log.Level, cfg.Log.Pretty)}
	ctx = logutil.WithLogger(ctx, rt.Log)

	strategy, err := oa.ParseStrategy(cfg.Auth.Strategy)
	if err != nil {
		return ctx, nil, err
	}
	protector, err := oa.NewProtector(strategy, cfg.Auth.Secret, cfg.Auth.WorkFactor)
	if err != nil {
		return ctx, nil, err
	}

	store, closeStore, err := stores.Open(ctx, cfg.Store)
	if err != nil {
		return ctx, nil, err
	}
	rt.Store = store
	rt.closers = append(rt.closers, closeStore)

	table, closeSessions, err := sessions.Open(ctx, cfg.Sessions, cfg.Auth.SessionTTL)
	if err != nil {
		rt.Close()
		return ctx, nil, err
	}
	rt.closers = append(rt.closers, closeSessions)

	rt.Verifier = oa.NewVerifier(store, table, protector)
	rt.Verifier.SessionTTL = cfg.Auth.SessionTTL
	rt.Verifier.OpTimeout = cfg.Auth.OpTimeout

	rt.Log.Info().
		Str("strategy", string(strategy)).
		Str("store", cfg.Store.Driver).
		Str("sessions", cfg.Sessions.Driver).
		Msg("Verifier ready")
	return ctx, rt, nil
}

// Lister returns the store as an AccountLister if the backend can enumerate
func (rt *Runtime) Lister() (oa.AccountLister, error) {
	lister, ok := rt.Store.(oa.AccountLister)
	if !ok {
		return nil, errors.Wrapf(oa.ErrConfiguration, "store driver %q cannot list accounts", rt.Config.Store.Driver)
	}
	return lister, nil
}

// Close releases everything Open acquired, in reverse order
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
