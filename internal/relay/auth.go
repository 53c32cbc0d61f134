package relay

import "github.com/solstice-os/relay/protocol"

// Authorizer gates DM-only actions. The relay ships with the
// self-declared role check; a credential-backed implementation can be
// substituted without touching the router.
type Authorizer interface {
	Allowed(c *Client, kind protocol.Kind) bool
}

// SelfDeclaredAuthorizer trusts the session's own DM flag. There is no
// secret behind it; any client may claim the role via set_dm_mode.
type SelfDeclaredAuthorizer struct{}

// Allowed reports whether the client may perform a DM-gated action.
func (SelfDeclaredAuthorizer) Allowed(c *Client, kind protocol.Kind) bool {
	return c.IsDM()
}
