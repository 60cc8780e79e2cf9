package credauth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Strategy is how a secret is represented at rest.  It is chosen once at
// startup and applies to every record created by the process.
type Strategy string

const (
	StrategyPlaintext    Strategy = "plaintext"
	StrategyReversible   Strategy = "reversible"
	StrategyUnsaltedHash Strategy = "unsalted-hash"
	StrategySaltedHash   Strategy = "salted-hash"
)

// DefaultWorkFactor is the bcrypt cost used when none is configured
const DefaultWorkFactor = bcrypt.DefaultCost

// ParseStrategy parses a configured strategy name
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyPlaintext, StrategyReversible, StrategyUnsaltedHash, StrategySaltedHash:
		return s, nil
	case "":
		return StrategySaltedHash, nil
	default:
		return "", errors.Wrapf(ErrConfiguration, "unknown strategy %q", name)
	}
}

// Protector seals raw secrets into their stored form and verifies raw
// secrets against a stored credential.
type Protector interface {
	Strategy() Strategy
	Seal(ctx context.Context, raw string) (string, error)
	Verify(ctx context.Context, raw, credential string) (bool, error)
}

// NewProtector returns the Protector for a strategy.  secret is only used by
// the reversible strategy and workFactor only by the salted hash.
func NewProtector(strategy Strategy, secret string, workFactor int) (Protector, error) {
	switch strategy {
	case StrategyPlaintext:
		return plaintextProtector{}, nil
	case StrategyReversible:
		return NewReversibleProtector(secret)
	case StrategyUnsaltedHash:
		return unsaltedHashProtector{}, nil
	case StrategySaltedHash:
		return NewSaltedHashProtector(workFactor), nil
	default:
		return nil, errors.Wrapf(ErrConfiguration, "unknown strategy %q", strategy)
	}
}

// =============================================================================
// Plaintext
// =============================================================================

type plaintextProtector struct{}

func (plaintextProtector) Strategy() Strategy { return StrategyPlaintext }

func (plaintextProtector) Seal(_ context.Context, raw string) (string, error) {
	return raw, nil
}

func (plaintextProtector) Verify(_ context.Context, raw, credential string) (bool, error) {
	return raw == credential, nil
}

// =============================================================================
// Reversible encryption
// =============================================================================

// keySalt is fixed so the same process secret always derives the same key;
// the secret itself is what must stay private.
var keySalt = []byte("credauth/reversible/v1")

type reversibleProtector struct {
	aead cipher.AEAD
}

// NewReversibleProtector derives an AES-256-GCM key from the process secret
func NewReversibleProtector(secret string) (Protector, error) {
	if secret == "" {
		return nil, errors.Wrap(ErrConfiguration, "reversible strategy requires a process secret")
	}
	key := argon2.IDKey([]byte(secret), keySalt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes.NewCipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "cipher.NewGCM")
	}
	return &reversibleProtector{aead: aead}, nil
}

func (p *reversibleProtector) Strategy() Strategy { return StrategyReversible }

func (p *reversibleProtector) Seal(_ context.Context, raw string) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	sealed := p.aead.Seal(nonce, nonce, []byte(raw), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt recovers the raw secret from a credential sealed by this protector
func (p *reversibleProtector) Decrypt(credential string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return "", errors.Wrap(err, "malformed credential")
	}
	ns := p.aead.NonceSize()
	if len(data) < ns {
		return "", errors.New("credential too short")
	}
	plain, err := p.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", errors.Wrap(err, "cannot decrypt credential")
	}
	return string(plain), nil
}

func (p *reversibleProtector) Verify(_ context.Context, raw, credential string) (bool, error) {
	plain, err := p.Decrypt(credential)
	if err != nil {
		// a credential we cannot open is a mismatch, not an outage
		return false, nil
	}
	return plain == raw, nil
}

// =============================================================================
// Unsalted hash
// =============================================================================

// unsaltedHashProtector stores hex(md5(secret)).  It is trivially reversed
// with rainbow tables and only exists as a historical variant.
type unsaltedHashProtector struct{}

func (unsaltedHashProtector) Strategy() Strategy { return StrategyUnsaltedHash }

func (unsaltedHashProtector) Seal(_ context.Context, raw string) (string, error) {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}

func (u unsaltedHashProtector) Verify(ctx context.Context, raw, credential string) (bool, error) {
	digest, _ := u.Seal(ctx, raw)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(credential)) == 1, nil
}

// =============================================================================
// Salted hash
// =============================================================================

type saltedHashProtector struct {
	cost int
}

// NewSaltedHashProtector returns a bcrypt backed protector.  Costs outside
// bcrypt's accepted range are clamped; zero means DefaultWorkFactor.
func NewSaltedHashProtector(workFactor int) Protector {
	switch {
	case workFactor == 0:
		workFactor = DefaultWorkFactor
	case workFactor < bcrypt.MinCost:
		workFactor = bcrypt.MinCost
	case workFactor > bcrypt.MaxCost:
		workFactor = bcrypt.MaxCost
	}
	return &saltedHashProtector{cost: workFactor}
}

func (p *saltedHashProtector) Strategy() Strategy { return StrategySaltedHash }

func (p *saltedHashProtector) Seal(_ context.Context, raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), p.cost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

func (p *saltedHashProtector) Verify(_ context.Context, raw, credential string) (bool, error) {
	// malformed hashes are reported as a mismatch too
	err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(raw))
	return err == nil, nil
}
