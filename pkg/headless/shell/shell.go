// Package shell runs the external tools headless drives (brew, launchctl,
// pmset, colima, docker, ollama) behind a small interface so components can
// be tested without touching the machine.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jamesainslie/headless/pkg/headless/logging"
)

// Cmd describes one external command.
type Cmd struct {
	Name string
	Args []string

	// Env entries are appended to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Interactive connects the terminal to the command so that sudo and
	// installer scripts can prompt. Output is then not captured.
	Interactive bool

	// Stdin, when set and not Interactive, is fed to the command.
	Stdin io.Reader
}

// String renders the command line for logs and error messages.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Command is a convenience constructor for a captured command.
func Command(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Lines returns non-empty trimmed lines of stdout.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Cmd      Cmd
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Cmd, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		if i := strings.LastIndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		msg += ": " + s
	}
	return msg
}

// IsExit reports whether err is an ExitError.
func IsExit(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// Runner executes commands. Exec is the real implementation and
// shelltest.Fake the scripted one.
type Runner interface {
	// Run executes cmd. A non-zero exit returns the Result together with
	// an *ExitError.
	Run(ctx context.Context, cmd Cmd) (Result, error)

	// LookPath finds an executable on PATH.
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, c Cmd) (Result, error) {
	log := logging.Get("shell")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	if c.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdin = c.Stdin
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			log.Debug("command failed", "cmd", c.String(), "exit", res.ExitCode, "duration", time.Since(start))
			return res, &ExitError{Cmd: c, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		log.Debug("command did not run", "cmd", c.String(), "error", err)
		return res, fmt.Errorf("running %s: %w", c.Name, err)
	}

	log.Debug("command ok", "cmd", c.String(), "duration", time.Since(start))
	return res, nil
}

// LookPath implements Runner.
func (Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Output runs cmd and returns trimmed stdout.
func Output(ctx context.Context, r Runner, cmd Cmd) (string, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Succeeds runs cmd and reports whether it exited zero. Errors other than a
// non-zero exit are returned.
func Succeeds(ctx context.Context, r Runner, cmd Cmd) (bool, error) {
	_, err := r.Run(ctx, cmd)
	if err == nil {
		return true, nil
	}
	if IsExit(err) {
		return false, nil
	}
	return false, err
}
