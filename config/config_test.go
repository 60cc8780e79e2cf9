package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "credauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3000", cfg.HTTP.Bind)
	assert.Equal(t, string(oa.StrategySaltedHash), cfg.Auth.Strategy)
	assert.Equal(t, oa.DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, oa.DefaultOpTimeout, cfg.Auth.OpTimeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "scs", cfg.Sessions.Driver)
	assert.False(t, cfg.OAuth.Google.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
http:
  bind: ":8080"
auth:
  strategy: reversible
  secret: from-file
  sessionTTL: 2h
store:
  driver: fs
  path: /var/lib/credauth
`)
	t.Setenv("CREDAUTH_AUTH_SECRET", "from-env")
	t.Setenv("CREDAUTH_AUTH_OPTIMEOUT", "750ms")
	t.Setenv("CREDAUTH_AUTH_LOGINAFTERREGISTER", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Bind)
	assert.Equal(t, "reversible", cfg.Auth.Strategy)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.Auth.OpTimeout)
	assert.True(t, cfg.Auth.LoginAfterRegister)
	assert.Equal(t, "/var/lib/credauth", cfg.Store.Path)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"unknown strategy":     "auth:\n  strategy: rot13\n",
		"reversible no secret": "auth:\n  strategy: reversible\n",
		"fs without path":      "store:\n  driver: fs\n",
		"unknown driver":       "store:\n  driver: cassandra\n",
		"postgres without dsn": "store:\n  driver: postgres\n",
		"oauth without base":   "oauth:\n  google:\n    clientId: id\n    clientSecret: s\n",
		"oauth without secret": "oauth:\n  baseURL: http://localhost:3000\n  github:\n    clientId: id\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, oa.ErrConfiguration)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, oa.ErrConfiguration)
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"auth": map[string]any{
			"sessionTTL": "24h",
		},
		"oauth": map[string]any{
			"google": map[string]any{
				"clientId": "",
			},
		},
	}
	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "AUTH_SESSIONTTL", want: "auth.sessionTTL"},
		{envKey: "OAUTH_GOOGLE_CLIENTID", want: "oauth.google.clientId"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}
	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}
