package auth

import (
	"context"
	"errors"
	"strings"
)

// Common authentication errors
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidAccessKey   = errors.New("invalid access key")
)

// Identity is the caller derived from the S3 access key.
// Access keys take the form "tenant:user"; a key without a colon names both.
type Identity struct {
	AccessKey string
	Tenant    string
	User      string

	// Account is the backend account the tenant's buckets live in
	Account string
}

// ID returns the principal id matched against ACL grants
func (i *Identity) ID() string {
	return i.Tenant + ":" + i.User
}

// NewIdentity maps an access key onto its backend account
func NewIdentity(accessKey, resellerPrefix string) (*Identity, error) {
	if accessKey == "" {
		return nil, ErrMissingCredentials
	}

	tenant, user, ok := strings.Cut(accessKey, ":")
	if !ok {
		user = tenant
	}
	if tenant == "" || user == "" {
		return nil, ErrInvalidAccessKey
	}

	return &Identity{
		AccessKey: accessKey,
		Tenant:    tenant,
		User:      user,
		Account:   resellerPrefix + tenant,
	}, nil
}

type identityKey struct{}

// WithIdentity stores the caller identity in the context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the caller identity from the request context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
