package credauth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// DefaultSessionTTL is how long a login stays valid unless configured otherwise
const DefaultSessionTTL = 24 * time.Hour

// Authenticated is handed back on a successful login.  SessionToken is the
// server side session identifier the caller stores in a persistent cookie.
type Authenticated struct {
	Account      *Account
	SessionToken string
	ExpiresAt    time.Time
}

// IsExpired checks if the session has expired
func (a *Authenticated) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// GenerateSecureToken generates a cryptographically secure random token
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate token")
	}
	return hex.EncodeToString(b), nil
}
