package mongo_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
	mongostore "github.com/panyam/credauth/stores/mongo"
	"github.com/panyam/credauth/stores/storetest"
)

// Set MONGO_URI (e.g. mongodb://localhost:27017) to run against a server
func TestMongoAccountStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongostore.Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	storetest.Run(t, func(t *testing.T) oa.AccountStore {
		db := client.Database("credauth_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { db.Drop(ctx) })
		store, err := mongostore.New(ctx, db)
		require.NoError(t, err)
		return store
	})
}
