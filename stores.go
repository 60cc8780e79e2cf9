package credauth

import (
	"context"
	"time"
)

// Account is the unit of stored identity
type Account struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier"`           // email, or provider:subject for external accounts
	Strategy   Strategy       `json:"strategy,omitempty"`   // strategy that produced Credential
	Credential string         `json:"credential,omitempty"` // empty for external accounts
	ExternalID string         `json:"external_id,omitempty"`
	Provider   string         `json:"provider,omitempty"` // "local", "google", "github"
	Profile    map[string]any `json:"profile,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IsExternal returns true if the identity was established by a third party provider
func (a *Account) IsExternal() bool {
	return a.ExternalID != ""
}

// AccountStore is the document store accounts live in.
//
// Insert must fail with ErrDuplicateIdentifier if either the Identifier or a
// non-empty ExternalID is already taken.  Lookups that miss return
// ErrAccountNotFound.  Transport failures should wrap ErrStoreUnavailable.
type AccountStore interface {
	Insert(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByExternalID(ctx context.Context, externalID string) (*Account, error)
}

// SessionTable binds opaque session tokens to account IDs.  Implementations
// are shared by all requests and must be safe for concurrent use.
type SessionTable interface {
	// Bind associates token with accountID until ttl elapses
	Bind(ctx context.Context, token, accountID string, ttl time.Duration) error

	// Resolve returns the bound account ID, or ok=false if the token is
	// unknown or expired
	Resolve(ctx context.Context, token string) (accountID string, ok bool, err error)

	// Revoke removes the binding.  Revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error
}

// IdentityKey creates a consistent key for an identity at a provider
func IdentityKey(provider, subject string) string {
	return provider + ":" + subject
}

// AccountLister is implemented by stores that can enumerate accounts.  Only
// operator tooling lists; the Verifier never does.
type AccountLister interface {
	AccountStore
	ListByProvider(ctx context.Context, provider string) ([]*Account, error)
}
