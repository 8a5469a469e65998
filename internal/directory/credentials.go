// Package directory implements the authentication and ban coordinator: a
// directory-backed credential verifier with a fallback-admin/master-user
// secondary path, and an IP-level fail2ban decision folded into the
// authentication outcome.
package directory

// Credentials is a tagged union over the three login shapes the coordinator
// accepts. Each concrete type implements the unexported marker method and
// loginName, the identity fail2ban accounting keys on.
type Credentials interface {
	isCredentials()
	loginName() string
}

// PlainCredentials is username/secret (password) authentication.
type PlainCredentials struct {
	Username string
	Secret   string
}

func (PlainCredentials) isCredentials()      {}
func (c PlainCredentials) loginName() string { return c.Username }

// XOauth2Credentials is the SASL XOAUTH2 mechanism: a username plus bearer
// token presented in place of a password.
type XOauth2Credentials struct {
	Username string
	Token    string
}

func (XOauth2Credentials) isCredentials()      {}
func (c XOauth2Credentials) loginName() string { return c.Username }

// OAuthBearerCredentials is the SASL OAUTHBEARER mechanism: a bare bearer
// token with no separate username.
type OAuthBearerCredentials struct {
	Token string
}

func (OAuthBearerCredentials) isCredentials()      {}
func (c OAuthBearerCredentials) loginName() string { return c.Token }
