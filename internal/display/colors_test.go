package display

import (
	"testing"

	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolesForRichProfile(t *testing.T) {
	for _, profile := range []termenv.Profile{termenv.TrueColor, termenv.ANSI256} {
		colors := rolesFor(profile)
		assert.True(t, colors[RolePrimary].Equals(color.New(color.FgHiBlue)))
		assert.True(t, colors[RoleError].Equals(color.New(color.FgHiRed)))
	}
}

func TestRolesForBasicProfile(t *testing.T) {
	colors := rolesFor(termenv.ANSI)
	assert.True(t, colors[RolePrimary].Equals(color.New(color.FgBlue)))
	assert.True(t, colors[RoleError].Equals(color.New(color.FgRed)))
}

func TestRolesForCoversEveryRole(t *testing.T) {
	for _, profile := range []termenv.Profile{termenv.Ascii, termenv.ANSI, termenv.ANSI256, termenv.TrueColor} {
		colors := rolesFor(profile)
		for role := RolePrimary; role <= RoleMuted; role++ {
			require.Contains(t, colors, role)
		}
	}
}
