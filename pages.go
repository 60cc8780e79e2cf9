package credauth

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/panyam/credauth/internal/logutil"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// SecretMessage is what the gated page reveals
const SecretMessage = "Jack Bauer is my hero."

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// messages shown for error codes passed back to the form pages.  Unknown
// codes show nothing.
var errorMessages = map[string]string{
	ErrCodeMissingField:   "Please enter both an email and a password.",
	ErrCodeInvalidEmail:   "Please enter a valid email address.",
	ErrCodeInvalidCreds:   "Invalid email or password.",
	ErrCodeAlreadyExists:  "That email is already registered.",
	ErrCodeUnavailable:    "We could not reach the account store. Please try again.",
	ErrCodeConfiguration:  "Sign in is not configured.",
	ErrCodeInvalidSession: "Your session has expired. Please log in again.",
}

type pageData struct {
	AppName     string
	Account     *Account
	Error       string
	Notice      string
	CallbackURL string
	Providers   []string
	Secret      string
}

func (a *App) render(w http.ResponseWriter, r *http.Request, page string, data pageData) {
	data.AppName = a.AppName
	data.Providers = a.ProviderNames()
	if data.Error == "" {
		data.Error = errorMessages[r.URL.Query().Get("error")]
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, page, data); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("page", page).Msg("Template failed")
	}
}

func (a *App) onHome(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home.html", pageData{Account: GetLoggedInAccount(r)})
}

func (a *App) onRegisterPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register.html", pageData{})
}

func (a *App) onLoginPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{CallbackURL: safeRedirect(r.URL.Query().Get("callbackURL"), "")}
	if r.URL.Query().Get("registered") != "" {
		data.Notice = "Account created. Please log in."
	}
	a.render(w, r, "login.html", data)
}

func (a *App) onSecrets(w http.ResponseWriter, r *http.Request) {
	account := GetLoggedInAccount(r)
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":         account.ID,
			"identifier": account.Identifier,
			"secret":     SecretMessage,
		})
		return
	}
	a.render(w, r, "secrets.html", pageData{Account: account, Secret: SecretMessage})
}
