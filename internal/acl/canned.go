package acl

// GetCannedACLGrants expands a canned ACL into explicit grants.
// Returns nil if the canned ACL is not supported.
func GetCannedACLGrants(cannedACL string, ownerID, ownerDisplayName string) []Grant {
	owner := Grant{
		Grantee: Grantee{
			Type:        GranteeTypeCanonicalUser,
			ID:          ownerID,
			DisplayName: ownerDisplayName,
		},
		Permission: PermissionFullControl,
	}

	switch cannedACL {
	case CannedACLPrivate:
		return []Grant{owner}

	case CannedACLPublicRead:
		return []Grant{owner, groupGrant(GroupAllUsers, PermissionRead)}

	case CannedACLPublicReadWrite:
		return []Grant{
			owner,
			groupGrant(GroupAllUsers, PermissionRead),
			groupGrant(GroupAllUsers, PermissionWrite),
		}

	case CannedACLAuthenticatedRead:
		return []Grant{owner, groupGrant(GroupAuthenticatedUsers, PermissionRead)}

	default:
		return nil
	}
}

// NewPrivateACL creates the ACL a container gets when none is specified
func NewPrivateACL(ownerID string) *ACL {
	return &ACL{
		Owner:     Owner{ID: ownerID, DisplayName: ownerID},
		Grants:    GetCannedACLGrants(CannedACLPrivate, ownerID, ownerID),
		CannedACL: CannedACLPrivate,
	}
}

func groupGrant(uri string, perm Permission) Grant {
	return Grant{
		Grantee:    Grantee{Type: GranteeTypeGroup, URI: uri},
		Permission: perm,
	}
}
