package credauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/panyam/credauth/internal/logutil"
)

type accountKey struct{}

// Middleware finds the logged in account for a request.  The session cookie
// (or a bearer header) carries a signed token; VerifyToken checks the
// signature and returns the server side session token, which is then
// resolved through the Verifier so revoked sessions stop working at once.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	CallbackURLParam    string

	// Where EnsureUser sends browsers without a session.  Empty means 401.
	GetRedirURL func(r *http.Request) string

	VerifyToken func(tokenString string) (sessionToken string, accountID string, err error)
	Verifier    *Verifier
}

// Ensures that config values have reasonable defaults.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInAccount returns the account ExtractUser or EnsureUser stored on
// the request, or nil
func GetLoggedInAccount(r *http.Request) *Account {
	account, _ := r.Context().Value(accountKey{}).(*Account)
	return account
}

// authTokens lists candidate tokens, header first
func (a *Middleware) authTokens(r *http.Request) []string {
	var tokens []string
	for _, h := range r.Header.Values(a.AuthTokenHeaderName) {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			tokens = append(tokens, t)
		}
	}
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			tokens = append(tokens, cookie.Value)
		}
	}
	return tokens
}

// loggedInAccount verifies each candidate token in turn
func (a *Middleware) loggedInAccount(r *http.Request) (*Account, string) {
	if a.VerifyToken == nil || a.Verifier == nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Msg("No auth token verifier found.  Please set one")
		return nil, ""
	}
	log := logutil.GetOrDefault(r.Context())
	for _, authToken := range a.authTokens(r) {
		sessionToken, accountID, err := a.VerifyToken(authToken)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected auth token")
			continue
		}
		account, err := a.Verifier.Resolve(r.Context(), sessionToken)
		if err != nil {
			log.Debug().Err(err).Msg("Session did not resolve")
			continue
		}
		if account.ID != accountID {
			log.Warn().Str("account", account.ID).Msg("Session bound to a different account than its token")
			continue
		}
		return account, sessionToken
	}
	return nil, ""
}

// ExtractUser loads the logged in account, if any, for downstream handlers.
// It never redirects; use EnsureUser to require a login.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			account, _ := a.loggedInAccount(r)
			next.ServeHTTP(w, withAccount(r, account))
		},
	)
}

func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			account, _ := a.loggedInAccount(r)
			if account != nil {
				next.ServeHTTP(w, withAccount(r, account))
				return
			}

			redirUrl := ""
			if a.GetRedirURL != nil && !wantsJSON(r) {
				redirUrl = a.GetRedirURL(r)
			}
			if redirUrl == "" {
				writeAuthError(AuthErrorFrom(ErrInvalidSession, ""), w)
				return
			}
			encodedUrl := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
			http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl), http.StatusFound)
		},
	)
}

func withAccount(r *http.Request, account *Account) *http.Request {
	if account == nil {
		return r
	}
	ctx := context.WithValue(r.Context(), accountKey{}, account)
	ctx = logutil.WithLogger(ctx, logutil.GetOrDefault(ctx).With().Str("account", account.ID).Logger())
	return r.WithContext(ctx)
}

// wantsJSON is true for API clients that asked for JSON
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
