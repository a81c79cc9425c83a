package display

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Printer renders user-facing progress and summaries. It is the only
// place that writes styled output; logging goes through the logger and
// stays machine-readable.
type Printer struct {
	out     io.Writer
	palette *Palette
	quiet   bool
}

// NewPrinter creates a printer on stdout.
func NewPrinter(quiet bool) *Printer {
	return &Printer{
		out:     os.Stdout,
		palette: NewPalette(),
		quiet:   quiet,
	}
}

// NewPrinterTo creates a printer on an explicit writer, for tests.
func NewPrinterTo(out io.Writer, quiet bool) *Printer {
	return &Printer{
		out:     out,
		palette: NewPalette(),
		quiet:   quiet,
	}
}

// Stage announces a pipeline stage.
func (p *Printer) Stage(name string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.palette.Sprint(RolePrimary, "==>"), name)
}

// Successf prints a success line. Printed even in quiet mode so scripts
// still get the one-line outcome.
func (p *Printer) Successf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, "%s %s\n", p.palette.Sprint(RoleSuccess, "✓"), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, "%s %s\n", p.palette.Sprint(RoleWarning, "!"), fmt.Sprintf(format, args...))
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, "%s %s\n", p.palette.Sprint(RoleError, "✗"), fmt.Sprintf(format, args...))
}

// Infof prints an informational line, suppressed in quiet mode.
func (p *Printer) Infof(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "  %s\n", fmt.Sprintf(format, args...))
}

// Summary prints a labeled key/value block.
func (p *Printer) Summary(title string, rows [][2]string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", p.palette.Sprint(RolePrimary, title))

	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}
	for _, row := range rows {
		fmt.Fprintf(p.out, "  %-*s  %s\n", width, p.palette.Sprint(RoleMuted, row[0]), row[1])
	}
}

// ArchiveList prints the restorable archives, oldest first, with their
// embedded timestamps and a selection index.
func (p *Printer) ArchiveList(names []string, timestamps []time.Time) {
	for i, name := range names {
		ts := ""
		if i < len(timestamps) && !timestamps[i].IsZero() {
			ts = timestamps[i].Format("2006-01-02 15:04:05")
		}
		marker := " "
		if i == len(names)-1 {
			marker = p.palette.Sprint(RoleSuccess, "*")
		}
		fmt.Fprintf(p.out, "%s [%d] %s  %s\n", marker, i+1, name, p.palette.Sprint(RoleMuted, ts))
	}
}
