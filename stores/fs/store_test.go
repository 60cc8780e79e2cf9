package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/stores/fs"
	"github.com/panyam/credauth/stores/storetest"
)

func TestFSAccountStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) oa.AccountStore {
		return fs.New(t.TempDir())
	})
}

func TestFSAccountStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	acct := storetest.NewLocal("persist@example.com", "secret-hash")
	require.NoError(t, fs.New(dir).Insert(ctx, acct))

	// a fresh store over the same directory sees the account
	got, err := fs.New(dir).FindByIdentifier(ctx, "persist@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, err = os.Stat(filepath.Join(dir, "accounts", acct.ID+".json"))
	assert.NoError(t, err)
}

func TestFSAccountStoreSurvivesOddIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := fs.New(t.TempDir())
	for _, id := range []string{"../../etc/passwd", "a/b@example.com", "github:42"} {
		require.NoError(t, store.Insert(ctx, storetest.NewLocal(id, "x")))
		got, err := store.FindByIdentifier(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.Identifier)
	}
}
