package accounts

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	oa "github.com/panyam/credauth"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.App{
		Name:     "credauth",
		Commands: []*cli.Command{Cmd()},
		Reader:   strings.NewReader(stdin),
		Writer:   &out,
	}
	err := app.RunContext(context.Background(), append([]string{"credauth", "accounts"}, args...))
	return out.String(), err
}

func TestAccountsCommands(t *testing.T) {
	t.Setenv("CREDAUTH_LOG_LEVEL", "disabled")
	t.Setenv("CREDAUTH_STORE_DRIVER", "fs")
	t.Setenv("CREDAUTH_STORE_PATH", t.TempDir())
	t.Setenv("CREDAUTH_AUTH_WORKFACTOR", "4")

	out, err := run(t, "hunter2\n", "register", "--identifier", "alice@example.com")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.NotEmpty(t, id)

	out, err = run(t, "hunter2\n", "check", "-u", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ok "+id+"\n", out)

	_, err = run(t, "wrong\n", "check", "-u", "alice@example.com")
	assert.ErrorIs(t, err, oa.ErrInvalidCredentials)

	_, err = run(t, "again\n", "register", "-u", "alice@example.com")
	assert.ErrorIs(t, err, oa.ErrDuplicateIdentifier)

	out, err = run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, id)

	out, err = run(t, "", "list", "--provider", "github")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice@example.com")
}

func TestRegisterNeedsPassword(t *testing.T) {
	t.Setenv("CREDAUTH_LOG_LEVEL", "disabled")
	_, err := run(t, "\n", "register", "-u", "bob@example.com")
	assert.ErrorContains(t, err, "missing password")
}

func TestBadConfigFails(t *testing.T) {
	t.Setenv("CREDAUTH_LOG_LEVEL", "disabled")
	t.Setenv("CREDAUTH_STORE_DRIVER", "nosuch")
	_, err := run(t, "", "list")
	assert.ErrorIs(t, err, oa.ErrConfiguration)
}
