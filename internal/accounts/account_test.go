package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"Admin":   RoleAdmin,
		"admin":   RoleAdmin,
		" ADMIN ": RoleAdmin,
		"User":    RoleUser,
		"user":    RoleUser,
		"":        RoleUser,
		"root":    RoleUser,
		"SuperAd": RoleUser,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), in)
	}
}
