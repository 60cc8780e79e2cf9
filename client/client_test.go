package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/client"
	"github.com/panyam/credauth/client/stores/fs"
	"github.com/panyam/credauth/sessions"
	"github.com/panyam/credauth/stores/mem"
)

func newServer(t *testing.T, loginAfterRegister bool) *httptest.Server {
	t.Helper()
	verifier := oa.NewVerifier(mem.New(), sessions.NewSCSTable(memstore.New()), oa.NewSaltedHashProtector(4))
	app := &oa.App{Verifier: verifier, Local: &oa.LocalAuth{LoginAfterRegister: loginAfterRegister}}
	server := httptest.NewServer(app.EnsureDefaults().Handler())
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, serverURL string) (*client.AuthClient, *fs.Store) {
	t.Helper()
	store, err := fs.New(filepath.Join(t.TempDir(), "credentials.json"), "")
	require.NoError(t, err)
	return client.NewAuthClient(serverURL+"/ignored/path", store), store
}

func TestRegisterLoginSecretLogout(t *testing.T) {
	server := newServer(t, false)
	c, store := newClient(t, server.URL)
	ctx := context.Background()

	assert.Equal(t, server.URL, c.ServerURL())
	assert.False(t, c.IsLoggedIn())

	id, cred, err := c.Register(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Nil(t, cred)
	assert.False(t, c.IsLoggedIn())

	_, err = c.Secret(ctx)
	assert.ErrorIs(t, err, oa.ErrInvalidSession)

	cred, err = c.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, id, cred.AccountID)
	assert.True(t, c.IsLoggedIn())

	stored, err := store.GetCredential(server.URL)
	require.NoError(t, err)
	assert.Equal(t, cred.Token, stored.Token)

	secret, err := c.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, oa.SecretMessage, secret)

	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.IsLoggedIn())

	// the old token is revoked server side too
	req, err := http.NewRequest(http.MethodGet, server.URL+"/secrets", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterWithLoginAfterRegister(t *testing.T) {
	server := newServer(t, true)
	c, _ := newClient(t, server.URL)

	id, cred, err := c.Register(context.Background(), "bob@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, id, cred.AccountID)
	assert.Equal(t, "local", cred.Provider)

	secret, err := c.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, oa.SecretMessage, secret)
}

func TestErrorsMapToSentinels(t *testing.T) {
	server := newServer(t, false)
	c, _ := newClient(t, server.URL)
	ctx := context.Background()

	_, _, err := c.Register(ctx, "carol@example.com", "pw")
	require.NoError(t, err)

	_, _, err = c.Register(ctx, "carol@example.com", "other")
	assert.ErrorIs(t, err, oa.ErrDuplicateIdentifier)

	_, _, err = c.Register(ctx, "not-an-email", "pw")
	assert.ErrorIs(t, err, oa.ErrMissingField)

	_, err = c.Login(ctx, "carol@example.com", "wrong")
	assert.ErrorIs(t, err, oa.ErrInvalidCredentials)

	_, err = c.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, oa.ErrInvalidCredentials)
}

func TestRejectedTokenIsForgotten(t *testing.T) {
	server := newServer(t, false)
	c, store := newClient(t, server.URL)
	ctx := context.Background()

	_, _, err := c.Register(ctx, "dave@example.com", "pw")
	require.NoError(t, err)
	cred, err := c.Login(ctx, "dave@example.com", "pw")
	require.NoError(t, err)

	cred.Token = "tampered"
	require.NoError(t, store.SetCredential(server.URL, cred))

	_, err = c.Secret(ctx)
	assert.ErrorIs(t, err, oa.ErrInvalidSession)
	assert.False(t, c.IsLoggedIn())
}

func TestServerUnreachable(t *testing.T) {
	server := newServer(t, false)
	url := server.URL
	server.Close()

	c, _ := newClient(t, url)
	_, err := c.Login(context.Background(), "x@example.com", "pw")
	assert.ErrorIs(t, err, oa.ErrStoreUnavailable)
}
