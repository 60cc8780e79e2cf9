package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/credauth/client"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "credentials.json"), "")
	require.NoError(t, err)
	return s
}

func testCredential(token string) *client.ServerCredential {
	return &client.ServerCredential{
		Token:      token,
		AccountID:  "acct-1",
		Identifier: "alice@example.com",
		ExpiresAt:  time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestGetSetRemove(t *testing.T) {
	s := newStore(t)

	cred, err := s.GetCredential("http://localhost:8080")
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, s.SetCredential("http://localhost:8080", testCredential("tok-1")))
	cred, err = s.GetCredential("http://localhost:8080")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok-1", cred.Token)

	require.NoError(t, s.RemoveCredential("http://localhost:8080"))
	cred, _ = s.GetCredential("http://localhost:8080")
	assert.Nil(t, cred)

	// removing twice is fine
	assert.NoError(t, s.RemoveCredential("http://localhost:8080"))
}

func TestURLsShareAnEntryPerHost(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetCredential("http://localhost:8080/login?x=1", testCredential("tok")))

	cred, err := s.GetCredential("http://localhost:8080/secrets")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok", cred.Token)

	cred, _ = s.GetCredential("http://localhost:9090")
	assert.Nil(t, cred)
}

func TestListServersSorted(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetCredential("https://b.example.com", testCredential("b")))
	require.NoError(t, s.SetCredential("https://a.example.com", testCredential("a")))

	servers, err := s.ListServers()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, servers)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	s, err := New(path, "")
	require.NoError(t, err)
	want := testCredential("persisted")
	require.NoError(t, s.SetCredential("https://auth.example.com", want))
	require.NoError(t, s.Save())

	reloaded, err := New(path, "")
	require.NoError(t, err)
	got, err := reloaded.GetCredential("https://auth.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.AccountID, got.AccountID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestSaveIsOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	s := newStore(t)
	require.NoError(t, s.SetCredential("https://auth.example.com", testCredential("tok")))
	require.NoError(t, s.Save())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := New(path, "")
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	s, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, "credentials.json", filepath.Base(s.Path()))
	assert.Equal(t, "credauth", filepath.Base(filepath.Dir(s.Path())))
}
