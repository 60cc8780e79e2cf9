package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/internal/logutil"
)

// BaseOAuth2 carries the flow shared by every provider: redirect with a state
// cookie, check the state on callback, exchange the code, fetch userinfo and
// hand the identity to HandleUser.
type BaseOAuth2 struct {
	// Provider name passed to HandleUser, e.g. "google"
	Name string

	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// UserInfoURL is fetched with the access token as a bearer credential.
	// Can be overridden for testing.
	UserInfoURL string

	// SubjectField names the userinfo field holding the stable user id
	SubjectField string

	// Where the browser goes when the exchange or userinfo fetch fails
	AuthFailureUrl string

	oauthConfig oauth2.Config
	httpClient  *http.Client
	mux         *http.ServeMux
}

func NewBaseOAuth2(name, clientId, clientSecret, callbackUrl string, handleUser HandleUserFunc) (*BaseOAuth2, error) {
	if clientId == "" || clientSecret == "" {
		return nil, errors.Wrapf(oa.ErrConfiguration, "%s: client id and secret are required", name)
	}
	if handleUser == nil {
		return nil, errors.Wrapf(oa.ErrConfiguration, "%s: no user handler", name)
	}
	out := &BaseOAuth2{
		Name:           name,
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleUser:     handleUser,
		SubjectField:   "id",
		AuthFailureUrl: "/login",
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	out.mux.HandleFunc("/callback/", out.HandleCallback)
	out.mux.HandleFunc("/", out.HandleRedirect)
	return out, nil
}

// Handler serves "/" (redirect to provider) and "/callback/" relative to
// wherever it is mounted
func (b *BaseOAuth2) Handler() http.Handler {
	return b.mux
}

// SetHTTPClient overrides the client used for the token exchange and the
// userinfo fetch
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

// SetOAuthEndpoint overrides the provider's auth and token URLs
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// ExchangeContext returns ctx carrying the injected HTTP client, if any, the
// way golang.org/x/oauth2 expects it
func (b *BaseOAuth2) ExchangeContext(ctx context.Context) context.Context {
	if b.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	return ctx
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return http.DefaultClient
}

func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	OauthRedirector(&b.oauthConfig)(w, r)
}

func (b *BaseOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context()).With().Str("provider", b.Name).Logger()

	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil {
		log.Info().Msg("OAuth callback without state cookie")
		http.Error(w, "OauthState is nil", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		clearStateCookie(w)
		http.Error(w, fmt.Sprintf("invalid oauth %s state", b.Name), http.StatusBadRequest)
		return
	}
	clearStateCookie(w)

	subject, userInfo, err := b.identify(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Info().Err(err).Msg("OAuth login failed, redirecting")
		http.Redirect(w, r, b.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}
	b.HandleUser(b.Name, subject, userInfo, w, r)
}

func (b *BaseOAuth2) identify(ctx context.Context, code string) (string, map[string]any, error) {
	if code == "" {
		return "", nil, errors.New("missing code")
	}
	token, err := b.oauthConfig.Exchange(b.ExchangeContext(ctx), code)
	if err != nil {
		return "", nil, errors.Wrap(err, "code exchange")
	}
	userInfo, err := b.getUserData(ctx, token)
	if err != nil {
		return "", nil, err
	}
	subject := fmt.Sprint(userInfo[b.SubjectField])
	if userInfo[b.SubjectField] == nil || subject == "" {
		return "", nil, errors.Errorf("userinfo has no %q field", b.SubjectField)
	}
	return subject, userInfo, nil
}

func (b *BaseOAuth2) getUserData(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.UserInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := b.getHTTPClient().Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed getting user info from %s", b.Name)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("user info returned %s", response.Status)
	}

	var userInfo map[string]any
	dec := json.NewDecoder(response.Body)
	// numeric ids (github) must not turn into floats
	dec.UseNumber()
	if err := dec.Decode(&userInfo); err != nil {
		return nil, errors.Wrap(err, "failed to parse user info")
	}
	return userInfo, nil
}
