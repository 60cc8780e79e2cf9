package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/config"
	"github.com/panyam/credauth/sessions"
	"github.com/panyam/credauth/stores/mem"
)

func testVerifier() *oa.Verifier {
	return oa.NewVerifier(mem.New(), sessions.NewSCSTable(memstore.New()), oa.NewSaltedHashProtector(4))
}

func TestNewAppMountsConfiguredProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.OAuth.BaseURL = "https://auth.example.com/"
	cfg.OAuth.GitHub = config.ProviderConfig{ClientID: "gh-id", ClientSecret: "gh-secret"}

	app, err := NewApp(testVerifier(), cfg, "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, app.ProviderNames())

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "github.com/login/oauth/authorize")
	assert.Contains(t, rr.Header().Get("Location"), "auth.example.com%2Fauth%2Fgithub%2Fcallback%2F")

	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewAppCarriesLoginAfterRegister(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.LoginAfterRegister = true
	app, err := NewApp(testVerifier(), cfg, "")
	require.NoError(t, err)
	assert.True(t, app.Local.LoginAfterRegister)
	assert.Empty(t, app.ProviderNames())
}

func TestNewGRPCServerRegistersHealth(t *testing.T) {
	server := NewGRPCServer(testVerifier())
	defer server.Stop()
	_, ok := server.GetServiceInfo()["grpc.health.v1.Health"]
	assert.True(t, ok)
}
