// Package policy decides which role pairs may open a conversation. A chat is
// strictly two-party: exactly one customer and one designer.
package policy

import "github.com/designpro/chatkit/pkg/identity"

// chatRole reduces a role to the chat-relevant subset. Admins and team
// members cannot participate in customer/designer chats.
func chatRole(r identity.Role) identity.Role {
	switch r {
	case identity.RoleCustomer, identity.RoleDesigner:
		return r
	default:
		return identity.RoleUnknown
	}
}

// EligiblePair reports whether a and b may share a chat room: both must hold
// a chat-capable role and the roles must differ.
func EligiblePair(a, b identity.User) bool {
	ra, rb := chatRole(a.Role), chatRole(b.Role)
	if ra == identity.RoleUnknown || rb == identity.RoleUnknown {
		return false
	}
	return ra != rb
}
