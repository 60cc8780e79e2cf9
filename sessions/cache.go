package sessions

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/panyam/credauth"
)

// CacheTable keeps bindings in memory using bigcache.  bigcache only knows a
// single life window, so each entry also carries its own expiry and entries
// bound with a shorter ttl stop resolving once it passes.
type CacheTable struct {
	cache *bigcache.BigCache
}

var _ credauth.SessionTable = (*CacheTable)(nil)

type xxHasher struct{}

func (xxHasher) Sum64(key string) uint64 {
	return xxhash.Sum64String(key)
}

// NewCacheTable creates a table whose entries are evicted at most lifeWindow
// after they were bound.
func NewCacheTable(ctx context.Context, lifeWindow time.Duration) (*CacheTable, error) {
	config := bigcache.DefaultConfig(lifeWindow)
	config.Hasher = xxHasher{}
	config.Verbose = false
	cache, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "bigcache.New")
	}
	return &CacheTable{cache: cache}, nil
}

func (t *CacheTable) Bind(_ context.Context, token, accountID string, ttl time.Duration) error {
	if token == "" || accountID == "" {
		return errors.Wrap(credauth.ErrMissingField, "token and account required")
	}
	entry := make([]byte, 8+len(accountID))
	binary.BigEndian.PutUint64(entry, uint64(time.Now().Add(ttl).UnixNano()))
	copy(entry[8:], accountID)
	return wrapUnavailable(t.cache.Set(token, entry), "bind session")
}

func (t *CacheTable) Resolve(_ context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	entry, err := t.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, wrapUnavailable(err, "resolve session")
	}
	if len(entry) <= 8 {
		return "", false, nil
	}
	expiry := int64(binary.BigEndian.Uint64(entry[:8]))
	if time.Now().UnixNano() > expiry {
		t.cache.Delete(token)
		return "", false, nil
	}
	return string(entry[8:]), true, nil
}

func (t *CacheTable) Revoke(_ context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := t.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return wrapUnavailable(err, "revoke session")
}

// Len returns the number of bindings held, expired ones included
func (t *CacheTable) Len() int {
	return t.cache.Len()
}

func (t *CacheTable) Close() error {
	return t.cache.Close()
}
