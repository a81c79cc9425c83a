package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator before destructive work proceeds. With
// AutoApprove set every question answers yes, which non-interactive
// invocations use via the --yes flag.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	AutoApprove bool
}

// NewPrompter creates a prompter on stdin/stdout.
func NewPrompter(autoApprove bool) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		AutoApprove: autoApprove,
	}
}

// NewPrompterWith creates a prompter on explicit streams, for tests.
func NewPrompterWith(in io.Reader, out io.Writer, autoApprove bool) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		AutoApprove: autoApprove,
	}
}

// Confirm asks a yes/no question, defaulting to no. Anything but an
// explicit yes declines.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.AutoApprove {
		return true, nil
	}

	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// SelectIndex asks for a 1-based choice out of count options.
// An empty answer picks defaultChoice.
func (p *Prompter) SelectIndex(question string, count, defaultChoice int) (int, error) {
	if p.AutoApprove {
		return defaultChoice, nil
	}

	fmt.Fprintf(p.out, "%s [1-%d, default %d]: ", question, count, defaultChoice)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read answer: %w", err)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return defaultChoice, nil
	}

	choice, err := strconv.Atoi(answer)
	if err != nil || choice < 1 || choice > count {
		return 0, fmt.Errorf("invalid choice %q, expected 1-%d", answer, count)
	}
	return choice, nil
}

// ReadPassword reads a password without echo. Falls back to a plain read
// when stdin is not a terminal.
func (p *Prompter) ReadPassword(prompt string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
