// Package storetest holds the behaviour every AccountStore implementation
// must share.  Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
)

// NewLocal returns a local account ready to insert
func NewLocal(identifier, credential string) *oa.Account {
	return &oa.Account{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Strategy:   oa.StrategySaltedHash,
		Credential: credential,
		Provider:   "local",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

// NewExternal returns an external account ready to insert
func NewExternal(provider, subject string) *oa.Account {
	key := oa.IdentityKey(provider, subject)
	return &oa.Account{
		ID:         uuid.NewString(),
		Identifier: key,
		ExternalID: key,
		Provider:   provider,
		Profile:    map[string]any{"name": "Test User"},
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Run exercises an AccountStore.  newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) oa.AccountStore) {
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		store := newStore(t)
		acct := NewLocal("alice@example.com", "$2a$10$abcdefghijklmnopqrstuv")
		require.NoError(t, store.Insert(ctx, acct))

		got, err := store.FindByIdentifier(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)
		assert.Equal(t, acct.Credential, got.Credential)
		assert.Equal(t, acct.Strategy, got.Strategy)
		assert.Equal(t, "local", got.Provider)
		assert.False(t, got.IsExternal())

		byID, err := store.FindByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, acct.Identifier, byID.Identifier)
	})

	t.Run("misses", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByIdentifier(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, oa.ErrAccountNotFound)
		_, err = store.FindByExternalID(ctx, "google:nobody")
		assert.ErrorIs(t, err, oa.ErrAccountNotFound)
		_, err = store.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, oa.ErrAccountNotFound)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, NewLocal("bob@example.com", "one")))
		err := store.Insert(ctx, NewLocal("bob@example.com", "two"))
		assert.ErrorIs(t, err, oa.ErrDuplicateIdentifier)

		got, err := store.FindByIdentifier(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, "one", got.Credential, "first registration must win")
	})

	t.Run("external accounts", func(t *testing.T) {
		store := newStore(t)
		acct := NewExternal("google", "12345")
		require.NoError(t, store.Insert(ctx, acct))

		got, err := store.FindByExternalID(ctx, "google:12345")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)
		assert.True(t, got.IsExternal())
		assert.Empty(t, got.Credential)
		assert.Equal(t, "Test User", got.Profile["name"])

		err = store.Insert(ctx, NewExternal("google", "12345"))
		assert.ErrorIs(t, err, oa.ErrDuplicateIdentifier)
	})

	t.Run("concurrent duplicate inserts", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Insert(ctx, NewLocal("race@example.com", fmt.Sprintf("cred-%d", i)))
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, oa.ErrDuplicateIdentifier)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})

	t.Run("list by provider", func(t *testing.T) {
		lister, ok := newStore(t).(oa.AccountLister)
		if !ok {
			t.Skip("store does not list")
		}
		first := NewExternal("github", "1")
		second := NewExternal("github", "2")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, lister.Insert(ctx, second))
		require.NoError(t, lister.Insert(ctx, first))
		require.NoError(t, lister.Insert(ctx, NewExternal("google", "1")))
		require.NoError(t, lister.Insert(ctx, NewLocal("carol@example.com", "x")))

		got, err := lister.ListByProvider(ctx, "github")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)

		local, err := lister.ListByProvider(ctx, "local")
		require.NoError(t, err)
		assert.Len(t, local, 1)
	})
}
