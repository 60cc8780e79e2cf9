// Package client talks to a credauth server from Go programs and command
// line tools.  It keeps the signed session token per server in a
// CredentialStore and attaches it to outgoing requests.
package client

import (
	"time"
)

// ServerCredential is the session a client holds for one server
type ServerCredential struct {
	Token      string    `json:"token"`
	AccountID  string    `json:"account_id"`
	Identifier string    `json:"identifier"`
	Provider   string    `json:"provider,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsExpired returns true if the session has expired
func (c *ServerCredential) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// CredentialStore defines the interface for storing and retrieving credentials
type CredentialStore interface {
	// GetCredential retrieves a credential for a server URL
	// Returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)

	SetCredential(serverURL string, cred *ServerCredential) error

	// Removing a missing credential is not an error
	RemoveCredential(serverURL string) error

	ListServers() ([]string, error)

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}
