package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	oa "github.com/panyam/credauth"
)

// AuthClient is an HTTP client for one credauth server.  Requests made
// through HTTPClient carry the stored session token.
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
	}
}

// WithTransport sets a custom base transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = &sessionTransport{client: c, base: c.baseTransport}
	// the server answers browser style redirects we never want to follow
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// Token returns the stored session token, or "" if there is no live session
func (c *AuthClient) Token() (string, error) {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil || cred.IsExpired() {
		return "", err
	}
	return cred.Token, nil
}

func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// IsLoggedIn reports whether a non-expired session is stored.  The server
// may still have revoked it.
func (c *AuthClient) IsLoggedIn() bool {
	token, err := c.Token()
	return err == nil && token != ""
}

// sessionResponse is what the server returns after establishing a session
type sessionResponse struct {
	Token      string    `json:"token"`
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Provider   string    `json:"provider"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Register creates a local account.  When the server logs new accounts in
// straight away the session is stored and returned; otherwise the returned
// credential is nil and Login must follow.
func (c *AuthClient) Register(ctx context.Context, identifier, password string) (accountID string, cred *ServerCredential, err error) {
	var resp sessionResponse
	if err := c.postCredentials(ctx, "/register", identifier, password, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" {
		return resp.ID, nil, nil
	}
	cred, err = c.saveSession(resp)
	return resp.ID, cred, err
}

// Login verifies the password and stores the session
func (c *AuthClient) Login(ctx context.Context, identifier, password string) (*ServerCredential, error) {
	var resp sessionResponse
	if err := c.postCredentials(ctx, "/login", identifier, password, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("server did not return a session token")
	}
	return c.saveSession(resp)
}

// Logout revokes the session on the server and forgets it locally.  The
// local credential is removed even if the server cannot be reached.
func (c *AuthClient) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, serverErr := c.httpClient.Do(req)
	if serverErr == nil {
		serverErr = decodeResponse(resp, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	if err := c.store.Save(); err != nil {
		return err
	}
	return serverErr
}

// Secret fetches the gated page.  It fails with oa.ErrInvalidSession when
// the session is missing, expired or revoked.
func (c *AuthClient) Secret(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/secrets", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	var body struct {
		Secret string `json:"secret"`
	}
	if err := decodeResponse(resp, &body); err != nil {
		return "", err
	}
	return body.Secret, nil
}

func (c *AuthClient) postCredentials(ctx context.Context, path, identifier, password string, out any) error {
	payload, err := json.Marshal(map[string]string{"username": identifier, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// credentials go out without any stale session attached
	resp, err := (&http.Client{Transport: c.baseTransport, Timeout: c.httpClient.Timeout}).Do(req)
	if err != nil {
		return errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	return decodeResponse(resp, out)
}

func (c *AuthClient) saveSession(resp sessionResponse) (*ServerCredential, error) {
	cred := &ServerCredential{
		Token:      resp.Token,
		AccountID:  resp.ID,
		Identifier: resp.Identifier,
		Provider:   resp.Provider,
		ExpiresAt:  resp.ExpiresAt,
		CreatedAt:  time.Now(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, errors.Wrap(err, "failed to store credential")
	}
	if err := c.store.Save(); err != nil {
		return nil, errors.Wrap(err, "failed to save credentials")
	}
	return cred, nil
}

// decodeResponse maps error bodies back onto the credauth sentinels so
// callers can use errors.Is on both sides of the wire
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode >= 300 {
		var authErr oa.AuthError
		if json.Unmarshal(body, &authErr) != nil || authErr.Code == "" {
			return errors.Errorf("unexpected response: HTTP %d", resp.StatusCode)
		}
		return errors.Wrap(sentinelFor(authErr.Code), authErr.Message)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, out), "invalid response from server")
}

func sentinelFor(code string) error {
	switch code {
	case oa.ErrCodeMissingField, oa.ErrCodeInvalidEmail:
		return oa.ErrMissingField
	case oa.ErrCodeInvalidCreds:
		return oa.ErrInvalidCredentials
	case oa.ErrCodeAlreadyExists:
		return oa.ErrDuplicateIdentifier
	case oa.ErrCodeInvalidSession:
		return oa.ErrInvalidSession
	case oa.ErrCodeConfiguration:
		return oa.ErrConfiguration
	default:
		return oa.ErrStoreUnavailable
	}
}

// sessionTransport adds the stored token and forgets it once the server
// stops accepting it
type sessionTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.Token()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		// sessions cannot be refreshed, only re-established by logging in
		t.client.mu.Lock()
		if t.client.store.RemoveCredential(t.client.serverURL) == nil {
			t.client.store.Save()
		}
		t.client.mu.Unlock()
	}
	return resp, nil
}
