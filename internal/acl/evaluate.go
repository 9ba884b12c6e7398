package acl

// Allows reports whether userID holds permission through any grant.
// The owner always has full control. An empty userID is anonymous and only
// matches AllUsers grants.
func (a *ACL) Allows(userID string, permission Permission) bool {
	if a == nil {
		return false
	}
	if userID != "" {
		if a.CheckPermission(userID, permission) || a.CheckAuthenticatedAccess(permission) {
			return true
		}
	}
	return a.CheckPublicAccess(permission)
}

// CheckPermission checks owner and user grants for userID
func (a *ACL) CheckPermission(userID string, permission Permission) bool {
	if a == nil || userID == "" {
		return false
	}

	// Owner always has full control
	if a.Owner.ID == userID {
		return true
	}

	for _, grant := range a.Grants {
		if grantMatchesUser(grant, userID) && permissionSatisfies(grant.Permission, permission) {
			return true
		}
	}

	return false
}

// CheckPublicAccess checks grants made to the AllUsers group
func (a *ACL) CheckPublicAccess(permission Permission) bool {
	return a.checkGroup(GroupAllUsers, permission)
}

// CheckAuthenticatedAccess checks grants made to the AuthenticatedUsers group
func (a *ACL) CheckAuthenticatedAccess(permission Permission) bool {
	return a.checkGroup(GroupAuthenticatedUsers, permission)
}

func (a *ACL) checkGroup(uri string, permission Permission) bool {
	if a == nil {
		return false
	}

	for _, grant := range a.Grants {
		if grant.Grantee.Type == GranteeTypeGroup && grant.Grantee.URI == uri {
			if permissionSatisfies(grant.Permission, permission) {
				return true
			}
		}
	}

	return false
}

// grantMatchesUser matches canonical user grants only; identities carry no email address
func grantMatchesUser(grant Grant, userID string) bool {
	return grant.Grantee.Type == GranteeTypeCanonicalUser && grant.Grantee.ID == userID
}

// permissionSatisfies reports whether a granted permission covers the required one
func permissionSatisfies(granted Permission, required Permission) bool {
	if granted == PermissionFullControl {
		return true
	}
	return granted == required
}
