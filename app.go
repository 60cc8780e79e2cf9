package credauth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/panyam/credauth/internal/logutil"
)

// ExternalProvider is an OAuth login flow mounted under /auth/{name}.  The
// oauth2 package's providers satisfy it.
type ExternalProvider interface {
	HandleRedirect(w http.ResponseWriter, r *http.Request)
	HandleCallback(w http.ResponseWriter, r *http.Request)
}

// App is the web application: pages, the local login forms, logout, the
// gated secrets page and any external providers.
type App struct {
	Verifier   *Verifier
	Local      *LocalAuth
	Middleware Middleware

	// Optional name shown on pages and used as the JWT issuer prefix
	AppName string

	// Name of the cookie carrying the signed session token
	AuthTokenCookieName string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	providers map[string]ExternalProvider
	router    *mux.Router
}

func New(verifier *Verifier, secretKey string) *App {
	return (&App{Verifier: verifier, JWTSecretKey: secretKey}).EnsureDefaults()
}

func (a *App) EnsureDefaults() *App {
	if a.AppName == "" {
		a.AppName = "credauth"
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = a.AppName + "-Issuer"
	}
	if a.AuthTokenCookieName == "" {
		a.AuthTokenCookieName = a.AppName + "_session"
	}
	if a.JWTSecretKey == "" {
		// sessions will not survive a restart, which an in-process session
		// table would not either
		a.JWTSecretKey, _ = GenerateSecureToken()
	}
	if a.Local == nil {
		a.Local = &LocalAuth{}
	}
	if a.Local.Verifier == nil {
		a.Local.Verifier = a.Verifier
	}
	if a.Local.HandleUser == nil {
		a.Local.HandleUser = a.onAuthenticated
	}
	if a.Local.HandleRegistered == nil {
		a.Local.HandleRegistered = a.onRegistered
	}
	if a.Local.OnLoginError == nil {
		a.Local.OnLoginError = a.redirectOnError("/login")
	}
	if a.Local.OnSignupError == nil {
		a.Local.OnSignupError = a.redirectOnError("/register")
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenCookieName
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.Verifier == nil {
		a.Middleware.Verifier = a.Verifier
	}
	if a.Middleware.GetRedirURL == nil {
		a.Middleware.GetRedirURL = func(*http.Request) string { return "/login" }
	}
	a.Middleware.EnsureReasonableDefaults()
	return a
}

// AddProvider mounts an external login flow at /auth/{name} and
// /auth/{name}/callback/
func (a *App) AddProvider(name string, provider ExternalProvider) *App {
	if a.providers == nil {
		a.providers = make(map[string]ExternalProvider)
	}
	a.providers[name] = provider
	return a
}

// ProviderNames lists mounted providers in a stable order
func (a *App) ProviderNames() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *App) Handler() http.Handler {
	return a.setupRoutes().router
}

func (a *App) setupRoutes() *App {
	if a.router != nil {
		return a
	}
	a.EnsureDefaults()
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.Handle("/", a.Middleware.ExtractUser(http.HandlerFunc(a.onHome))).Methods(http.MethodGet)
	r.HandleFunc("/register", a.onRegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/register", a.Local.HandleSignup).Methods(http.MethodPost)
	r.HandleFunc("/login", a.onLoginPage).Methods(http.MethodGet)
	r.Handle("/login", a.Local).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.onLogout).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/secrets", a.Middleware.EnsureUser(http.HandlerFunc(a.onSecrets))).Methods(http.MethodGet)
	r.HandleFunc("/auth/{provider}", a.onProviderRedirect).Methods(http.MethodGet)
	r.HandleFunc("/auth/{provider}/callback/", a.onProviderCallback).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(staticFS)))

	a.router = r
	return a
}

// requestLogger tags the request scoped logger with a request id
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context()).With().
			Str("request", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logutil.WithLogger(r.Context(), log)))
		log.Debug().Dur("elapsed", time.Since(start)).Msg("Request served")
	})
}

func (a *App) provider(w http.ResponseWriter, r *http.Request) ExternalProvider {
	p, ok := a.providers[mux.Vars(r)["provider"]]
	if !ok {
		http.NotFound(w, r)
		return nil
	}
	return p
}

func (a *App) onProviderRedirect(w http.ResponseWriter, r *http.Request) {
	if p := a.provider(w, r); p != nil {
		p.HandleRedirect(w, r)
	}
}

func (a *App) onProviderCallback(w http.ResponseWriter, r *http.Request) {
	if p := a.provider(w, r); p != nil {
		p.HandleCallback(w, r)
	}
}

// SaveUserAndRedirect is handed to the OAuth providers.  It is called with an
// identity the provider has already verified.
func (a *App) SaveUserAndRedirect(provider, subject string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
	auth, err := a.Verifier.ExternalLogin(r.Context(), provider, subject, profile)
	if err != nil {
		authErr := AuthErrorFrom(err, "")
		if !a.redirectOnError("/login")(authErr, w, r) {
			writeAuthError(authErr, w)
		}
		return
	}

	callbackURL := "/secrets"
	if c, _ := r.Cookie("oauthCallbackURL"); c != nil {
		callbackURL = safeRedirect(c.Value, callbackURL)
	}
	// so it wont be used for subsequent redirects
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Path:   "/",
		MaxAge: -1,
	})
	if _, ok := a.setLoggedInUser(auth, w, r); ok {
		http.Redirect(w, r, callbackURL, http.StatusFound)
	}
}

func (a *App) onAuthenticated(auth *Authenticated, w http.ResponseWriter, r *http.Request) {
	token, ok := a.setLoggedInUser(auth, w, r)
	if !ok {
		return
	}
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"token":      token,
			"id":         auth.Account.ID,
			"identifier": auth.Account.Identifier,
			"provider":   auth.Account.Provider,
			"expires_at": auth.ExpiresAt,
		})
		return
	}
	http.Redirect(w, r, safeRedirect(r.FormValue("callbackURL"), "/secrets"), http.StatusFound)
}

func (a *App) onRegistered(account *Account, w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":         account.ID,
			"identifier": account.Identifier,
		})
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusFound)
}

// redirectOnError sends browsers back to a form page with the error code.
// API clients fall through to the JSON rendering.
func (a *App) redirectOnError(page string) AuthErrorHandler {
	return func(err *AuthError, w http.ResponseWriter, r *http.Request) bool {
		if wantsJSON(r) {
			return false
		}
		http.Redirect(w, r, page+"?error="+url.QueryEscape(err.Code), http.StatusFound)
		return true
	}
}

func (a *App) onLogout(w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context())
	for _, token := range a.Middleware.authTokens(r) {
		sessionToken, _, err := a.verifyJWT(token)
		if err != nil {
			continue
		}
		if err := a.Verifier.Logout(r.Context(), sessionToken); err != nil {
			log.Warn().Err(err).Msg("Could not revoke session")
		}
	}
	a.setLoggedInUser(nil, w, r)

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "logged out"})
		return
	}
	http.Redirect(w, r, safeRedirect(r.URL.Query().Get("to"), "/"), http.StatusFound)
}

// setLoggedInUser writes the session cookie, or clears it when auth is nil,
// and returns the signed token.  ok is false if a response has already been
// written.
func (a *App) setLoggedInUser(auth *Authenticated, w http.ResponseWriter, r *http.Request) (token string, ok bool) {
	if auth == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     a.AuthTokenCookieName,
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
		})
		return "", true
	}

	tokenString, err := a.signSession(auth)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Error signing session token")
		writeAuthError(AuthErrorFrom(err, ""), w)
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.AuthTokenCookieName,
		Value:    tokenString,
		Path:     "/",
		Expires:  auth.ExpiresAt,
		MaxAge:   int(time.Until(auth.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return tokenString, true
}

func (a *App) signSession(auth *Authenticated) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        auth.SessionToken,
		Subject:   auth.Account.ID,
		Issuer:    a.JwtIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(auth.ExpiresAt),
	})
	return token.SignedString([]byte(a.JWTSecretKey))
}

// verifyJWT checks the cookie's signature and returns the session token and
// account id it carries.  Whether the session is still live is up to the
// Verifier.
func (a *App) verifyJWT(tokenString string) (sessionToken string, accountID string, err error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.JwtIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", "", errors.Wrap(ErrInvalidSession, err.Error())
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return "", "", ErrInvalidSession
	}
	return claims.ID, claims.Subject, nil
}

// safeRedirect only follows local paths so callback parameters cannot send
// users off site
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
