package identity

import (
	"fmt"
	"strings"
)

// Role is the backend user_type code.
type Role string

const (
	RoleCustomer   Role = "CUS"
	RoleDesigner   Role = "DES"
	RoleAdmin      Role = "ADM"
	RoleTeamMember Role = "TM"
	RoleUnknown    Role = ""
)

// ParseRole maps a raw user_type value to a Role. Unrecognized values map to
// RoleUnknown rather than failing; loose wire shapes must never leak errors
// past the boundary.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer
	case RoleDesigner:
		return RoleDesigner
	case RoleAdmin:
		return RoleAdmin
	case RoleTeamMember:
		return RoleTeamMember
	default:
		return RoleUnknown
	}
}

// Profile is the loose user shape the backend returns. Field names vary
// between endpoints (name vs username), so every field is optional and the
// canonical form is derived with Canonical.
type Profile struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// User is the canonical user shape used internally. It is an immutable
// snapshot; a new value is produced on re-login, never mutated in place.
type User struct {
	ID          int
	DisplayName string
	Role        Role
	Email       string
}

// Canonical normalizes a wire profile into a User.
func (p *Profile) Canonical() User {
	if p == nil {
		return User{DisplayName: "Unknown"}
	}
	return User{
		ID:          p.ID,
		DisplayName: CoalesceName(p),
		Role:        ParseRole(p.UserType),
		Email:       strings.TrimSpace(p.Email),
	}
}

// CoalesceName picks a display name: the first non-empty of name, username,
// email, then "User #<id>", then "Unknown".
func CoalesceName(p *Profile) string {
	if p == nil {
		return "Unknown"
	}
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(p.Username); n != "" {
		return n
	}
	if n := strings.TrimSpace(p.Email); n != "" {
		return n
	}
	if p.ID > 0 {
		return fmt.Sprintf("User #%d", p.ID)
	}
	return "Unknown"
}

// Initial returns the upper-cased first character of a display name, or "?"
// when there is none.
func Initial(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return "?"
	}
	return strings.ToUpper(s[:1])
}

// Matches reports whether u and other refer to the same account. ID is the
// primary key; email is a legacy fallback for records created while the
// backend returned mismatched participant ids.
func (u User) Matches(other User) bool {
	if u.ID > 0 && u.ID == other.ID {
		return true
	}
	return u.Email != "" && strings.EqualFold(u.Email, other.Email)
}
