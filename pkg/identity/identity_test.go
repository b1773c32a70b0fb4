package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesceName(t *testing.T) {
	t.Run("prefers name", func(t *testing.T) {
		assert.Equal(t, "Alice", CoalesceName(&Profile{ID: 1, Name: "Alice", Username: "al", Email: "a@b.com"}))
	})

	t.Run("falls back to username", func(t *testing.T) {
		assert.Equal(t, "al", CoalesceName(&Profile{ID: 1, Name: "  ", Username: "al", Email: "a@b.com"}))
	})

	t.Run("falls back to email", func(t *testing.T) {
		assert.Equal(t, "a@b.com", CoalesceName(&Profile{ID: 9, Name: "", Username: "", Email: "a@b.com"}))
	})

	t.Run("falls back to id", func(t *testing.T) {
		assert.Equal(t, "User #9", CoalesceName(&Profile{ID: 9}))
	})

	t.Run("nil profile", func(t *testing.T) {
		assert.Equal(t, "Unknown", CoalesceName(nil))
	})

	t.Run("no usable field", func(t *testing.T) {
		assert.Equal(t, "Unknown", CoalesceName(&Profile{}))
	})
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleCustomer, ParseRole("CUS"))
	assert.Equal(t, RoleDesigner, ParseRole("des"))
	assert.Equal(t, RoleAdmin, ParseRole(" ADM "))
	assert.Equal(t, RoleTeamMember, ParseRole("tm"))
	assert.Equal(t, RoleUnknown, ParseRole("manager"))
	assert.Equal(t, RoleUnknown, ParseRole(""))
}

func TestCanonical(t *testing.T) {
	u := (&Profile{ID: 4, Username: "dee", Email: " d@e.com ", UserType: "DES"}).Canonical()
	assert.Equal(t, 4, u.ID)
	assert.Equal(t, "dee", u.DisplayName)
	assert.Equal(t, RoleDesigner, u.Role)
	assert.Equal(t, "d@e.com", u.Email)

	var p *Profile
	assert.Equal(t, User{DisplayName: "Unknown"}, p.Canonical())
}

func TestMatches(t *testing.T) {
	t.Run("by id", func(t *testing.T) {
		a := User{ID: 3, Email: "a@b.com"}
		b := User{ID: 3, Email: "other@b.com"}
		assert.True(t, a.Matches(b))
	})

	t.Run("legacy email fallback", func(t *testing.T) {
		// Records written while the backend returned mismatched ids.
		a := User{ID: 3, Email: "a@b.com"}
		b := User{ID: 77, Email: "A@B.com"}
		assert.True(t, a.Matches(b))
	})

	t.Run("no match", func(t *testing.T) {
		a := User{ID: 3, Email: "a@b.com"}
		b := User{ID: 4, Email: "c@d.com"}
		assert.False(t, a.Matches(b))
	})
}

func TestInitial(t *testing.T) {
	assert.Equal(t, "A", Initial("alice"))
	assert.Equal(t, "?", Initial("  "))
}
