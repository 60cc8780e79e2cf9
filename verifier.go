package credauth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/panyam/credauth/internal/logutil"
)

// DefaultOpTimeout bounds every store, session and hashing call
const DefaultOpTimeout = 5 * time.Second

// Verifier owns registration, login and session resolution for one process
// wide strategy.  It holds no per-request state; the session table is the
// only shared mutable resource and it is passed in by the owner.
type Verifier struct {
	// Must be passed in
	Store     AccountStore
	Sessions  SessionTable
	Protector Protector

	// How long a session stays bound.  Defaults to DefaultSessionTTL
	SessionTTL time.Duration

	// Upper bound on each store/hash call.  Defaults to DefaultOpTimeout
	OpTimeout time.Duration

	decoyOnce sync.Once
	decoy     string
}

func NewVerifier(store AccountStore, sessions SessionTable, protector Protector) *Verifier {
	return (&Verifier{Store: store, Sessions: sessions, Protector: protector}).EnsureDefaults()
}

func (v *Verifier) EnsureDefaults() *Verifier {
	if v.SessionTTL <= 0 {
		v.SessionTTL = DefaultSessionTTL
	}
	if v.OpTimeout <= 0 {
		v.OpTimeout = DefaultOpTimeout
	}
	return v
}

// Validate reports missing collaborators
func (v *Verifier) Validate() error {
	switch {
	case v.Store == nil:
		return errors.Wrap(ErrConfiguration, "verifier: no account store")
	case v.Sessions == nil:
		return errors.Wrap(ErrConfiguration, "verifier: no session table")
	case v.Protector == nil:
		return errors.Wrap(ErrConfiguration, "verifier: no credential strategy")
	}
	return nil
}

// Register creates a local account with the secret sealed by the configured
// strategy.  It does not log the caller in; see RegisterAndLogin.
func (v *Verifier) Register(ctx context.Context, identifier, rawSecret string) (*Account, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if identifier == "" || rawSecret == "" {
		return nil, errors.Wrap(ErrMissingField, "identifier and secret required")
	}
	log := logutil.GetOrDefault(ctx)

	credential, err := bounded(ctx, v.OpTimeout, "seal", func(ctx context.Context) (string, error) {
		return v.Protector.Seal(ctx, rawSecret)
	})
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Strategy:   v.Protector.Strategy(),
		Credential: credential,
		Provider:   "local",
		CreatedAt:  time.Now().UTC(),
	}
	if err := boundedErr(ctx, v.OpTimeout, "insert", func(ctx context.Context) error {
		return v.Store.Insert(ctx, account)
	}); err != nil {
		log.Info().Err(err).Str("identifier", identifier).Msg("Registration failed")
		return nil, err
	}

	log.Info().Str("account", account.ID).Str("strategy", string(account.Strategy)).Msg("Registered local account")
	return account, nil
}

// RegisterAndLogin registers and immediately establishes a session for the
// new account.
func (v *Verifier) RegisterAndLogin(ctx context.Context, identifier, rawSecret string) (*Authenticated, error) {
	account, err := v.Register(ctx, identifier, rawSecret)
	if err != nil {
		return nil, err
	}
	return v.establish(ctx, account)
}

// Login verifies the secret and establishes a session.  Every failure that
// depends on what is stored (unknown identifier, external-only account, wrong
// secret) is reported as ErrInvalidCredentials.
func (v *Verifier) Login(ctx context.Context, identifier, rawSecret string) (*Authenticated, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if identifier == "" || rawSecret == "" {
		return nil, errors.Wrap(ErrMissingField, "identifier and secret required")
	}
	log := logutil.GetOrDefault(ctx).With().Str("identifier", identifier).Logger()

	account, err := bounded(ctx, v.OpTimeout, "find", func(ctx context.Context) (*Account, error) {
		return v.Store.FindByIdentifier(ctx, identifier)
	})
	if errors.Is(err, ErrAccountNotFound) {
		// burn the same work as a real check so misses are not faster
		v.verify(ctx, rawSecret, v.decoyCredential(ctx))
		log.Info().Msg("Login failed")
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	if account.IsExternal() || account.Credential == "" {
		v.verify(ctx, rawSecret, v.decoyCredential(ctx))
		log.Info().Msg("Login failed: account has no local credential")
		return nil, ErrInvalidCredentials
	}
	if account.Strategy != v.Protector.Strategy() {
		v.verify(ctx, rawSecret, v.decoyCredential(ctx))
		log.Warn().Str("stored", string(account.Strategy)).Str("active", string(v.Protector.Strategy())).
			Msg("Login failed: record sealed with a different strategy")
		return nil, ErrInvalidCredentials
	}

	ok, err := v.verify(ctx, rawSecret, account.Credential)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info().Msg("Login failed")
		return nil, ErrInvalidCredentials
	}
	return v.establish(ctx, account)
}

// ExternalLogin signs in an identity already verified by a third party
// provider, creating the account on first sight.  Existing accounts are never
// modified here.
func (v *Verifier) ExternalLogin(ctx context.Context, provider, subject string, profile map[string]any) (*Authenticated, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if provider == "" || subject == "" {
		return nil, errors.Wrap(ErrMissingField, "provider and subject required")
	}
	log := logutil.GetOrDefault(ctx)
	externalID := IdentityKey(provider, subject)

	account, err := v.findExternal(ctx, externalID)
	if errors.Is(err, ErrAccountNotFound) {
		created := &Account{
			ID:         uuid.NewString(),
			Identifier: externalID,
			ExternalID: externalID,
			Provider:   provider,
			Profile:    profile,
			CreatedAt:  time.Now().UTC(),
		}
		err = boundedErr(ctx, v.OpTimeout, "insert", func(ctx context.Context) error {
			return v.Store.Insert(ctx, created)
		})
		if errors.Is(err, ErrDuplicateIdentifier) {
			// lost a race with a concurrent first login
			account, err = v.findExternal(ctx, externalID)
		} else if err == nil {
			account = created
			log.Info().Str("account", account.ID).Str("provider", provider).Msg("Created external account")
		}
	}
	if err != nil {
		return nil, err
	}
	return v.establish(ctx, account)
}

// Resolve returns the account bound to a session token
func (v *Verifier) Resolve(ctx context.Context, token string) (*Account, error) {
	if token == "" || v.Sessions == nil || v.Store == nil {
		return nil, ErrInvalidSession
	}
	binding, err := bounded(ctx, v.OpTimeout, "resolve", func(ctx context.Context) (sessionBinding, error) {
		accountID, found, err := v.Sessions.Resolve(ctx, token)
		return sessionBinding{accountID, found}, err
	})
	if err != nil {
		return nil, err
	}
	if !binding.found {
		return nil, ErrInvalidSession
	}

	account, err := bounded(ctx, v.OpTimeout, "find", func(ctx context.Context) (*Account, error) {
		return v.Store.FindByID(ctx, binding.accountID)
	})
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidSession
	} else if err != nil {
		return nil, err
	}
	return account, nil
}

// IsAuthenticated reports whether token resolves to a live account
func (v *Verifier) IsAuthenticated(ctx context.Context, token string) bool {
	_, err := v.Resolve(ctx, token)
	return err == nil
}

// Logout revokes the session binding.  Revoking an unknown or already
// revoked token succeeds.
func (v *Verifier) Logout(ctx context.Context, token string) error {
	if token == "" || v.Sessions == nil {
		return nil
	}
	err := boundedErr(ctx, v.OpTimeout, "revoke", func(ctx context.Context) error {
		return v.Sessions.Revoke(ctx, token)
	})
	if err == nil {
		log := logutil.GetOrDefault(ctx)
		log.Info().Msg("Session revoked")
	}
	return err
}

func (v *Verifier) establish(ctx context.Context, account *Account) (*Authenticated, error) {
	token, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	if err := boundedErr(ctx, v.OpTimeout, "bind", func(ctx context.Context) error {
		return v.Sessions.Bind(ctx, token, account.ID, v.SessionTTL)
	}); err != nil {
		return nil, err
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("account", account.ID).Str("provider", account.Provider).Msg("Session established")
	return &Authenticated{
		Account:      account,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(v.SessionTTL),
	}, nil
}

func (v *Verifier) findExternal(ctx context.Context, externalID string) (*Account, error) {
	return bounded(ctx, v.OpTimeout, "find", func(ctx context.Context) (*Account, error) {
		return v.Store.FindByExternalID(ctx, externalID)
	})
}

func (v *Verifier) verify(ctx context.Context, raw, credential string) (bool, error) {
	return bounded(ctx, v.OpTimeout, "verify", func(ctx context.Context) (bool, error) {
		return v.Protector.Verify(ctx, raw, credential)
	})
}

type sessionBinding struct {
	accountID string
	found     bool
}

// decoyCredential is a credential sealed with the active strategy that no
// account owns.  Verifying against it costs the same as a real check.
func (v *Verifier) decoyCredential(ctx context.Context) string {
	v.decoyOnce.Do(func() {
		token, err := GenerateSecureToken()
		if err != nil {
			return
		}
		v.decoy, _ = v.Protector.Seal(ctx, token)
	})
	return v.decoy
}
