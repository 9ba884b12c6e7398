package multidelete

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/acl"
	"github.com/swiftgate/swiftgate/internal/auth"
)

// Decision is the result of a permission check
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Action is the operation being authorized
type Action string

// ActionDelete removes an object; it requires WRITE on the bucket
const ActionDelete Action = "s3:DeleteObject"

// Authorizer decides whether a caller may act on one key.
// Implementations must not mutate anything.
type Authorizer interface {
	Authorize(ctx context.Context, id *auth.Identity, account, container, key string, action Action) (Decision, error)
}

// AllowAll admits every key and leaves enforcement to the backend
type AllowAll struct{}

// Authorize always allows
func (AllowAll) Authorize(context.Context, *auth.Identity, string, string, string, Action) (Decision, error) {
	return Allowed, nil
}

// ACLAuthorizer evaluates the bucket ACL stored with the container
type ACLAuthorizer struct {
	containers *ContainerCache
}

// NewACLAuthorizer creates an authorizer reading ACLs through containers
func NewACLAuthorizer(containers *ContainerCache) *ACLAuthorizer {
	return &ACLAuthorizer{containers: containers}
}

// Authorize checks WRITE on the bucket. Without a stored ACL only identities
// of the owning account are allowed. An unreadable ACL denies.
func (a *ACLAuthorizer) Authorize(ctx context.Context, id *auth.Identity, account, container, key string, action Action) (Decision, error) {
	bucketACL, err := a.containers.ACL(ctx, account, container)
	if err != nil {
		if isACLError(err) {
			return Denied, nil
		}
		return Denied, err
	}

	principal := ""
	if id != nil {
		principal = id.ID()
	}

	if bucketACL == nil {
		if id != nil && id.Account == account {
			return Allowed, nil
		}
		return Denied, nil
	}

	if bucketACL.Allows(principal, permissionFor(action)) {
		return Allowed, nil
	}

	logrus.WithFields(logrus.Fields{
		"account":   account,
		"bucket":    container,
		"key":       key,
		"principal": principal,
	}).Debug("Delete denied by bucket ACL")
	return Denied, nil
}

func permissionFor(action Action) acl.Permission {
	switch action {
	case ActionDelete:
		return acl.PermissionWrite
	}
	return acl.PermissionFullControl
}

func isACLError(err error) bool {
	return errors.Is(err, acl.ErrInvalidACL) ||
		errors.Is(err, acl.ErrInvalidGrantee) ||
		errors.Is(err, acl.ErrInvalidCannedACL)
}
