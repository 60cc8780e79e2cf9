package sessions

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/pkg/errors"

	"github.com/panyam/credauth"
)

// SCSTable stores session bindings in an scs.Store.  The account ID is the
// session payload; scs takes care of expiry.
type SCSTable struct {
	store scs.Store
}

var _ credauth.SessionTable = (*SCSTable)(nil)

func NewSCSTable(store scs.Store) *SCSTable {
	return &SCSTable{store: store}
}

func (t *SCSTable) Bind(ctx context.Context, token, accountID string, ttl time.Duration) error {
	if token == "" || accountID == "" {
		return errors.Wrap(credauth.ErrMissingField, "token and account required")
	}
	expiry := time.Now().Add(ttl)
	var err error
	if cs, ok := t.store.(scs.CtxStore); ok {
		err = cs.CommitCtx(ctx, token, []byte(accountID), expiry)
	} else {
		err = t.store.Commit(token, []byte(accountID), expiry)
	}
	return wrapUnavailable(err, "bind session")
}

func (t *SCSTable) Resolve(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	var b []byte
	var found bool
	var err error
	if cs, ok := t.store.(scs.CtxStore); ok {
		b, found, err = cs.FindCtx(ctx, token)
	} else {
		b, found, err = t.store.Find(token)
	}
	if err != nil {
		return "", false, wrapUnavailable(err, "resolve session")
	}
	if !found || len(b) == 0 {
		return "", false, nil
	}
	return string(b), true, nil
}

func (t *SCSTable) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	var err error
	if cs, ok := t.store.(scs.CtxStore); ok {
		err = cs.DeleteCtx(ctx, token)
	} else {
		err = t.store.Delete(token)
	}
	return wrapUnavailable(err, "revoke session")
}

func wrapUnavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(credauth.ErrStoreUnavailable, "%s: %v", msg, err)
}
