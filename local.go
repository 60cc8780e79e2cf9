package credauth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/panyam/credauth/internal/logutil"
)

// HandleAuthenticatedFunc is called once a session has been established
type HandleAuthenticatedFunc func(auth *Authenticated, w http.ResponseWriter, r *http.Request)

// HandleRegisteredFunc is called after a registration that did not log in
type HandleRegisteredFunc func(account *Account, w http.ResponseWriter, r *http.Request)

// Allows local username/password based authentication
type LocalAuth struct {
	// Must be passed in
	Verifier *Verifier

	// Establish a session straight after registering instead of sending the
	// user to the login page
	LoginAfterRegister bool

	// Form field names
	UsernameField string
	PasswordField string

	// Handler called after successful authentication
	HandleUser HandleAuthenticatedFunc

	// Handler called after a registration when LoginAfterRegister is off.
	// Defaults to a 201 JSON response.
	HandleRegistered HandleRegisteredFunc

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// credentialsForm is what both the login and the signup forms post
type credentialsForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// ServeHTTP handles login requests
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Verifier == nil || a.HandleUser == nil {
		a.handleLoginError(AuthErrorFrom(ErrConfiguration, ""), w, r)
		return
	}

	form, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), a.getUsernameField()), w, r)
		return
	}

	auth, err := a.Verifier.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		a.handleLoginError(AuthErrorFrom(err, a.getPasswordField()), w, r)
		return
	}
	a.HandleUser(auth, w, r)
}

// HandleSignup registers a new local account.  The username must be an email.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Verifier == nil {
		a.handleSignupError(AuthErrorFrom(ErrConfiguration, ""), w, r)
		return
	}

	form, err := a.parseLoginForm(r)
	if err != nil {
		a.handleSignupError(NewAuthError(ErrCodeMissingField, err.Error(), a.getUsernameField()), w, r)
		return
	}
	if err := validate.Var(form.Username, "email"); err != nil {
		a.handleSignupError(NewAuthError(ErrCodeInvalidEmail, "Please enter a valid email address", a.getUsernameField()), w, r)
		return
	}

	if a.LoginAfterRegister && a.HandleUser != nil {
		auth, err := a.Verifier.RegisterAndLogin(r.Context(), form.Username, form.Password)
		if err != nil {
			a.handleSignupError(AuthErrorFrom(err, a.getUsernameField()), w, r)
			return
		}
		a.HandleUser(auth, w, r)
		return
	}

	account, err := a.Verifier.Register(r.Context(), form.Username, form.Password)
	if err != nil {
		a.handleSignupError(AuthErrorFrom(err, a.getUsernameField()), w, r)
		return
	}
	if a.HandleRegistered != nil {
		a.HandleRegistered(account, w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":         account.ID,
		"identifier": account.Identifier,
	})
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (form credentialsForm, err error) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return form, errors.New("invalid post body")
		}
		form.Username, _ = data[usernameField].(string)
		form.Password, _ = data[passwordField].(string)
	} else {
		if err = r.ParseForm(); err != nil {
			return form, errors.New("error parsing form")
		}
		form.Username = r.PostFormValue(usernameField)
		form.Password = r.PostFormValue(passwordField)
	}

	form.Username = strings.TrimSpace(form.Username)
	if err := validate.Struct(form); err != nil {
		return form, errors.New("username and password required")
	}
	return form, nil
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context())
	log.Info().Str("code", err.Code).Msg("Login rejected")
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	writeAuthError(err, w)
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context())
	log.Info().Str("code", err.Code).Msg("Signup rejected")
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	writeAuthError(err, w)
}

func writeAuthError(err *AuthError, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	json.NewEncoder(w).Encode(err)
}
