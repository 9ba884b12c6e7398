package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Common ACL errors
var (
	ErrInvalidACL       = errors.New("invalid acl")
	ErrInvalidGrantee   = errors.New("invalid grantee")
	ErrInvalidCannedACL = errors.New("invalid canned acl")
)

// ACL is the access control list stored with a container.
// It is persisted as JSON in the container's system metadata.
type ACL struct {
	Owner     Owner   `json:"owner"`
	Grants    []Grant `json:"grants"`
	CannedACL string  `json:"canned_acl,omitempty"`
}

// Owner represents the owner of a resource
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Grant represents a single permission grant
type Grant struct {
	Grantee    Grantee    `json:"grantee"`
	Permission Permission `json:"permission"`
}

// Grantee represents the recipient of a permission grant
type Grantee struct {
	Type         GranteeType `json:"type"`
	ID           string      `json:"id,omitempty"`            // For CanonicalUser
	DisplayName  string      `json:"display_name,omitempty"`  // For CanonicalUser
	EmailAddress string      `json:"email_address,omitempty"` // For AmazonCustomerByEmail
	URI          string      `json:"uri,omitempty"`           // For Group
}

// Permission represents a type of access permission
type Permission string

const (
	PermissionRead        Permission = "READ"
	PermissionWrite       Permission = "WRITE"
	PermissionReadACP     Permission = "READ_ACP"
	PermissionWriteACP    Permission = "WRITE_ACP"
	PermissionFullControl Permission = "FULL_CONTROL"
)

// GranteeType represents the type of grantee
type GranteeType string

const (
	GranteeTypeCanonicalUser  GranteeType = "CanonicalUser"
	GranteeTypeAmazonCustomer GranteeType = "AmazonCustomerByEmail"
	GranteeTypeGroup          GranteeType = "Group"
)

// Canned ACL constants
const (
	CannedACLPrivate           = "private"
	CannedACLPublicRead        = "public-read"
	CannedACLPublicReadWrite   = "public-read-write"
	CannedACLAuthenticatedRead = "authenticated-read"
)

// Well-known S3 groups
const (
	GroupAllUsers           = "http://acs.amazonaws.com/groups/global/AllUsers"
	GroupAuthenticatedUsers = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// IsValidPermission checks if a permission string is valid
func IsValidPermission(perm Permission) bool {
	switch perm {
	case PermissionRead,
		PermissionWrite,
		PermissionReadACP,
		PermissionWriteACP,
		PermissionFullControl:
		return true
	}
	return false
}

// Decode parses a stored ACL document. An empty document yields (nil, nil).
func Decode(raw string) (*ACL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var a ACL
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidACL, err)
	}
	if a.Owner.ID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidACL)
	}

	if len(a.Grants) == 0 && a.CannedACL != "" {
		grants := GetCannedACLGrants(a.CannedACL, a.Owner.ID, a.Owner.DisplayName)
		if grants == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCannedACL, a.CannedACL)
		}
		a.Grants = grants
	}

	for i, g := range a.Grants {
		if !IsValidPermission(g.Permission) {
			return nil, fmt.Errorf("%w: grant %d has permission %q", ErrInvalidACL, i, g.Permission)
		}
		if err := g.Grantee.validate(); err != nil {
			return nil, fmt.Errorf("grant %d: %w", i, err)
		}
	}

	return &a, nil
}

// Encode serializes an ACL for storage
func Encode(a *ACL) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (g Grantee) validate() error {
	switch g.Type {
	case GranteeTypeCanonicalUser:
		if g.ID == "" {
			return fmt.Errorf("%w: canonical user without id", ErrInvalidGrantee)
		}
	case GranteeTypeAmazonCustomer:
		if g.EmailAddress == "" {
			return fmt.Errorf("%w: customer without email", ErrInvalidGrantee)
		}
	case GranteeTypeGroup:
		if g.URI == "" {
			return fmt.Errorf("%w: group without uri", ErrInvalidGrantee)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidGrantee, g.Type)
	}
	return nil
}
