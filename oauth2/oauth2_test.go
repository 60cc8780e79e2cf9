package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oauth2lib "golang.org/x/oauth2"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/oauth2"
)

// mockOAuthServer stands in for a provider's /token and /userinfo endpoints
type mockOAuthServer struct {
	server           *httptest.Server
	tokenEndpoint    string
	userInfoEndpoint string

	userInfoBody  string
	tokenError    bool
	userInfoError bool
	lastAuthz     string
}

func newMockOAuthServer(t *testing.T) *mockOAuthServer {
	mock := &mockOAuthServer{
		userInfoBody: `{"id": "12345", "email": "testuser@example.com", "name": "Test User"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock_access_token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		mock.lastAuthz = r.Header.Get("Authorization")
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(mock.userInfoBody))
	})

	mock.server = httptest.NewServer(mux)
	mock.tokenEndpoint = mock.server.URL + "/token"
	mock.userInfoEndpoint = mock.server.URL + "/userinfo"
	t.Cleanup(mock.server.Close)
	return mock
}

type handledUser struct {
	called   bool
	provider string
	subject  string
	profile  map[string]any
}

func (h *handledUser) handle(provider, subject string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.provider = provider
	h.subject = subject
	h.profile = profile
	w.WriteHeader(http.StatusOK)
}

func pointAtMock(base *oauth2.BaseOAuth2, mock *mockOAuthServer) {
	base.UserInfoURL = mock.userInfoEndpoint
	base.SetHTTPClient(mock.server.Client())
	base.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.tokenEndpoint,
	})
}

func callback(h http.Handler, query string, state string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/callback/?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: state})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestOauthRedirector(t *testing.T) {
	config := &oauth2lib.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scopes:       []string{"email", "profile"},
		Endpoint: oauth2lib.Endpoint{
			AuthURL:  "https://provider.example.com/auth",
			TokenURL: "https://provider.example.com/token",
		},
	}
	redirector := oauth2.OauthRedirector(config)

	t.Run("redirects with state matching cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		redirector(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusFound, rr.Code)
		location := rr.Header().Get("Location")
		assert.True(t, strings.HasPrefix(location, "https://provider.example.com/auth"), location)

		parsed, err := url.Parse(location)
		require.NoError(t, err)
		query := parsed.Query()
		assert.Equal(t, "test-client-id", query.Get("client_id"))
		assert.Equal(t, "code", query.Get("response_type"))

		state := findCookie(rr, "oauthstate")
		require.NotNil(t, state)
		assert.True(t, state.HttpOnly)
		assert.Equal(t, query.Get("state"), state.Value)
	})

	t.Run("remembers callback URL", func(t *testing.T) {
		rr := httptest.NewRecorder()
		redirector(rr, httptest.NewRequest(http.MethodGet, "/?callbackURL=/secrets", nil))
		cb := findCookie(rr, "oauthCallbackURL")
		require.NotNil(t, cb)
		assert.Equal(t, "/secrets", cb.Value)
	})

	t.Run("state is unique per request", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 10; i++ {
			rr := httptest.NewRecorder()
			redirector(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			c := findCookie(rr, "oauthstate")
			require.NotNil(t, c)
			assert.False(t, seen[c.Value])
			seen[c.Value] = true
		}
	})
}

func TestGoogleOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer(t)
	var handled handledUser
	googleAuth, err := oauth2.NewGoogleOAuth2("test-client-id", "test-client-secret",
		"http://localhost:8080/auth/google/callback/", handled.handle)
	require.NoError(t, err)
	pointAtMock(googleAuth.BaseOAuth2, mock)

	t.Run("rejects missing state cookie", func(t *testing.T) {
		handled = handledUser{}
		rr := callback(googleAuth.Handler(), "code=test_code&state=test_state", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.False(t, handled.called)
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		handled = handledUser{}
		rr := callback(googleAuth.Handler(), "code=test_code&state=wrong_state", "correct_state")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid oauth")
		assert.False(t, handled.called)
	})

	t.Run("successful callback flow", func(t *testing.T) {
		handled = handledUser{}
		mock.userInfoBody = `{"id": "google123", "email": "user@gmail.com", "name": "Google User"}`

		rr := callback(googleAuth.Handler(), "code=valid_code&state=valid_state", "valid_state")
		assert.Equal(t, http.StatusOK, rr.Code)
		require.True(t, handled.called)
		assert.Equal(t, "google", handled.provider)
		assert.Equal(t, "google123", handled.subject)
		assert.Equal(t, "user@gmail.com", handled.profile["email"])
		assert.Equal(t, "Bearer mock_access_token", mock.lastAuthz)
	})

	t.Run("redirects on token exchange failure", func(t *testing.T) {
		handled = handledUser{}
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		rr := callback(googleAuth.Handler(), "code=bad_code&state=valid_state", "valid_state")
		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))
		assert.False(t, handled.called)
	})

	t.Run("redirects on user info failure", func(t *testing.T) {
		handled = handledUser{}
		mock.userInfoError = true
		defer func() { mock.userInfoError = false }()

		rr := callback(googleAuth.Handler(), "code=valid_code&state=valid_state", "valid_state")
		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.False(t, handled.called)
	})

	t.Run("redirects when userinfo has no subject", func(t *testing.T) {
		handled = handledUser{}
		mock.userInfoBody = `{"email": "anon@example.com"}`

		rr := callback(googleAuth.Handler(), "code=valid_code&state=valid_state", "valid_state")
		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.False(t, handled.called)
	})
}

func TestGithubOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer(t)
	var handled handledUser
	githubAuth, err := oauth2.NewGithubOAuth2("test-client-id", "test-client-secret",
		"http://localhost:8080/auth/github/callback/", handled.handle)
	require.NoError(t, err)
	pointAtMock(githubAuth.BaseOAuth2, mock)

	// github ids are numbers and must come through without float formatting
	mock.userInfoBody = `{"id": 98765432, "login": "githubuser", "email": "user@github.com"}`

	rr := callback(githubAuth.Handler(), "code=valid_code&state=valid_state", "valid_state")
	assert.Equal(t, http.StatusOK, rr.Code)
	require.True(t, handled.called)
	assert.Equal(t, "github", handled.provider)
	assert.Equal(t, "98765432", handled.subject)
	assert.Equal(t, "githubuser", handled.profile["login"])
}

func TestProviderConstruction(t *testing.T) {
	noop := func(string, string, map[string]any, http.ResponseWriter, *http.Request) {}

	_, err := oauth2.NewGoogleOAuth2("", "secret", "http://localhost/cb", noop)
	assert.ErrorIs(t, err, oa.ErrConfiguration)

	_, err = oauth2.NewGithubOAuth2("id", "", "http://localhost/cb", noop)
	assert.ErrorIs(t, err, oa.ErrConfiguration)

	_, err = oauth2.NewGithubOAuth2("id", "secret", "http://localhost/cb", nil)
	assert.ErrorIs(t, err, oa.ErrConfiguration)

	googleAuth, err := oauth2.NewGoogleOAuth2("id", "secret", "http://localhost/cb", noop)
	require.NoError(t, err)
	assert.Equal(t, "https://www.googleapis.com/oauth2/v2/userinfo", googleAuth.UserInfoURL)

	githubAuth, err := oauth2.NewGithubOAuth2("id", "secret", "http://localhost/cb", noop)
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/user", githubAuth.UserInfoURL)
}
