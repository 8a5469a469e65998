package directory

import "context"

// Principal is the opaque directory query result the core threads through
// to callers; its internal shape is out of scope.
type Principal struct {
	Name       string
	MemberOf   []string
	Attributes map[string]string
}

// FallbackAdminPrincipal constructs the synthetic Principal returned when the
// fallback-admin credential matches and no master-user impersonation target
// was requested.
func FallbackAdminPrincipal(name string) *Principal {
	return &Principal{Name: name, Attributes: map[string]string{"source": "fallback_admin"}}
}

// Directory is the primary credential backend. Its concrete implementation
// (LDAP, SQL, IMAP passthrough, ...) lives outside this package; the
// coordinator only depends on this interface.
type Directory interface {
	// QueryByCredentials resolves credentials directly. A nil, nil return
	// means "not found" (not an error); a non-nil error means the backend
	// itself failed.
	QueryByCredentials(ctx context.Context, creds Credentials, returnMemberOf bool) (*Principal, error)

	// QueryByName resolves a bare account name, used for the master-user
	// impersonation lookup.
	QueryByName(ctx context.Context, name string, returnMemberOf bool) (*Principal, error)
}

// FallbackAdminConfig is the emergency credential independent of the
// directory.
type FallbackAdminConfig struct {
	Name         string
	PasswordHash string
	Master       bool // fallback_admin_master: enables the user%admin split
}
