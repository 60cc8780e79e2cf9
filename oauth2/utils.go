package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/panyam/credauth/internal/logutil"
)

const (
	stateCookieName    = "oauthstate"
	callbackCookieName = "oauthCallbackURL"
	stateCookieMaxAge  = 10 * time.Minute
)

// HandleUserFunc receives an identity the provider has vouched for.  subject
// is the provider's stable user id; profile is the raw userinfo document.
type HandleUserFunc func(provider string, subject string, profile map[string]any, w http.ResponseWriter, r *http.Request)

func generateStateOauthCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Path:   "/",
		MaxAge: -1,
	})
}

// OauthRedirector sends the browser to the provider's consent page with a
// fresh state value that the callback checks against the state cookie
func OauthRedirector(oauthConfig *oauth2.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// remember where to send the user once the provider is done
		if callbackURL := r.URL.Query().Get("callbackURL"); callbackURL != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     callbackCookieName,
				Value:    callbackURL,
				Path:     "/",
				MaxAge:   120, // keep this short
				HttpOnly: true,
			})
		}
		oauthState, err := generateStateOauthCookie(w, r)
		if err != nil {
			log := logutil.GetOrDefault(r.Context())
			log.Error().Err(err).Msg("Could not generate oauth state")
			http.Error(w, "could not start login", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, oauthConfig.AuthCodeURL(oauthState), http.StatusFound)
	}
}
