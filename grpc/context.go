// Package grpc authenticates gRPC calls with the same session tokens the web
// app issues.  The interceptors resolve the token carried in request
// metadata and put the account on the context for handlers.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	oa "github.com/panyam/credauth"
)

// DefaultMetadataKeyAuthorization is the gRPC metadata key carrying
// "Bearer <session token>"
const DefaultMetadataKeyAuthorization = "authorization"

type accountKey struct{}

// Config holds the metadata key configuration for auth context.
type Config struct {
	// Defaults to "authorization"
	MetadataKeyAuthorization string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{MetadataKeyAuthorization: DefaultMetadataKeyAuthorization}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

// AccountFromContext returns the account the interceptor resolved, or nil
func AccountFromContext(ctx context.Context) *oa.Account {
	account, _ := ctx.Value(accountKey{}).(*oa.Account)
	return account
}

// AccountIDFromContext returns the authenticated account id, or ""
func AccountIDFromContext(ctx context.Context) string {
	if account := AccountFromContext(ctx); account != nil {
		return account.ID
	}
	return ""
}

// IsAuthenticated returns true if there is an authenticated account in the context.
func IsAuthenticated(ctx context.Context) bool {
	return AccountFromContext(ctx) != nil
}

func withAccount(ctx context.Context, account *oa.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// SessionTokenToOutgoingContext attaches a session token to outgoing calls
func SessionTokenToOutgoingContext(ctx context.Context, sessionToken string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+sessionToken)
}

// sessionTokenFromMetadata returns the first bearer token under key
func sessionTokenFromMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(key) {
		if token := strings.TrimSpace(strings.TrimPrefix(v, "Bearer ")); token != "" {
			return token
		}
	}
	return ""
}
