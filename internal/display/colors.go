package display

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Role is a semantic color role, resolved through the active palette so
// output degrades to plain text on dumb terminals and pipes.
type Role int

const (
	RolePrimary Role = iota
	RoleSuccess
	RoleWarning
	RoleError
	RoleInfo
	RoleMuted
)

// Palette maps semantic roles to terminal colors.
type Palette struct {
	colors    map[Role]*color.Color
	supported bool
}

// NewPalette builds the palette with terminal detection. The terminal's
// color profile decides between the high-intensity palette and the plain
// 16-color one.
func NewPalette() *Palette {
	p := &Palette{
		supported: detectColorSupport(),
		colors:    rolesFor(termenv.ColorProfile()),
	}
	if !p.supported {
		color.NoColor = true
	}
	return p
}

// rolesFor maps the semantic roles onto concrete colors for the given
// profile. Terminals below 256 colors get the basic set.
func rolesFor(profile termenv.Profile) map[Role]*color.Color {
	if profile == termenv.ANSI || profile == termenv.Ascii {
		return map[Role]*color.Color{
			RolePrimary: color.New(color.FgBlue),
			RoleSuccess: color.New(color.FgGreen),
			RoleWarning: color.New(color.FgYellow),
			RoleError:   color.New(color.FgRed),
			RoleInfo:    color.New(color.FgCyan),
			RoleMuted:   color.New(color.FgWhite),
		}
	}
	return map[Role]*color.Color{
		RolePrimary: color.New(color.FgHiBlue),
		RoleSuccess: color.New(color.FgHiGreen),
		RoleWarning: color.New(color.FgHiYellow),
		RoleError:   color.New(color.FgHiRed),
		RoleInfo:    color.New(color.FgCyan),
		RoleMuted:   color.New(color.FgWhite),
	}
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// Sprint renders text in the given role's color when supported.
func (p *Palette) Sprint(role Role, text string) string {
	if !p.supported {
		return text
	}
	if c, ok := p.colors[role]; ok {
		return c.Sprint(text)
	}
	return text
}

// Supported reports whether colors are rendered.
func (p *Palette) Supported() bool {
	return p.supported
}
