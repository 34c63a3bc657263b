// Package prompt asks the operator questions on the terminal. Components
// receive a *Prompter; answering with --yes skips every question and takes
// the affirmative or default answer.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrCancelled is returned when the operator declines to continue.
var ErrCancelled = errors.New("cancelled by operator")

// IsTTY reports whether stdin is an interactive terminal.
func IsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Prompter reads answers from in and writes questions to out.
type Prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

// New returns a Prompter. With assumeYes every question is answered
// without reading input.
func New(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// Stdio returns a Prompter on os.Stdin and os.Stdout.
func Stdio(assumeYes bool) *Prompter {
	return New(os.Stdin, os.Stdout, assumeYes)
}

// AssumeYes reports whether questions are answered automatically.
func (p *Prompter) AssumeYes() bool {
	return p.assumeYes
}

// Out is where questions and progress are written.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Printf writes to the prompter's output.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// readLine returns the trimmed answer. EOF on an empty line is treated as an
// empty answer so that closed stdin means "take the default".
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. def is the answer for an empty line.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	if p.assumeYes {
		fmt.Fprintf(p.out, "%s %s y\n", question, hint)
		return true, nil
	}

	for {
		fmt.Fprintf(p.out, "%s %s ", question, hint)
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// Require asks question defaulting to no and returns ErrCancelled unless the
// operator says yes.
func (p *Prompter) Require(question string) error {
	ok, err := p.Confirm(question, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// RequireTwice guards destructive operations: the operator must agree to
// question and then to a second, explicit confirmation.
func (p *Prompter) RequireTwice(question string) error {
	if err := p.Require(question); err != nil {
		return err
	}
	return p.Require("This cannot be undone. Are you absolutely sure?")
}

// Int asks for an integer in [lo, hi]; an empty answer takes def. hi <= 0
// means no upper bound. Invalid answers are asked again.
func (p *Prompter) Int(label string, def, lo, hi int) (int, error) {
	if p.assumeYes {
		fmt.Fprintf(p.out, "%s [%d]: %d\n", label, def, def)
		return def, nil
	}

	for {
		fmt.Fprintf(p.out, "%s [%d]: ", label, def)
		answer, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return def, nil
		}
		n, err := strconv.Atoi(answer)
		switch {
		case err != nil:
			fmt.Fprintf(p.out, "%q is not a whole number.\n", answer)
		case n < lo:
			fmt.Fprintf(p.out, "Must be at least %d.\n", lo)
		case hi > 0 && n > hi:
			fmt.Fprintf(p.out, "Must be at most %d.\n", hi)
		default:
			return n, nil
		}
	}
}
