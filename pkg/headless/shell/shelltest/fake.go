// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// Response is the canned outcome of a command. A non-zero ExitCode makes
// Run return a *shell.ExitError; Err, when set, is returned as is.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error

	// Do, when set, runs before the response is returned. Tests use it to
	// simulate side effects such as an installer creating files.
	Do func(shell.Cmd)
}

type rule struct {
	line   string
	prefix bool
	resp   []Response
}

// Fake records every command and answers from rules registered with On and
// OnPrefix. Unmatched commands succeed with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []*rule
	ran   []shell.Cmd

	// Paths maps executable names to LookPath results. Missing names are
	// reported as not found.
	Paths map[string]string
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Paths: make(map[string]string)}
}

// On answers the exact command line with the responses in order; the last
// one repeats.
func (f *Fake) On(line string, resp ...Response) *Fake {
	return f.add(line, false, resp)
}

// OnPrefix answers any command line starting with prefix.
func (f *Fake) OnPrefix(prefix string, resp ...Response) *Fake {
	return f.add(prefix, true, resp)
}

// Have marks executables as present on PATH under /usr/local/bin.
func (f *Fake) Have(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.Paths[n] = "/usr/local/bin/" + n
	}
	return f
}

func (f *Fake) add(line string, prefix bool, resp []Response) *Fake {
	if len(resp) == 0 {
		resp = []Response{{}}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Later rules win.
	f.rules = append([]*rule{{line: line, prefix: prefix, resp: resp}}, f.rules...)
	return f
}

// Run implements shell.Runner.
func (f *Fake) Run(_ context.Context, cmd shell.Cmd) (shell.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ran = append(f.ran, cmd)
	line := cmd.String()

	for _, r := range f.rules {
		if line != r.line && !(r.prefix && strings.HasPrefix(line, r.line)) {
			continue
		}
		resp := r.resp[0]
		if len(r.resp) > 1 {
			r.resp = r.resp[1:]
		}
		if resp.Do != nil {
			resp.Do(cmd)
		}
		res := shell.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
		if resp.Err != nil {
			return res, resp.Err
		}
		if resp.ExitCode != 0 {
			return res, &shell.ExitError{Cmd: cmd, ExitCode: resp.ExitCode, Stderr: resp.Stderr}
		}
		return res, nil
	}
	return shell.Result{}, nil
}

// LookPath implements shell.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// Commands returns the command lines run so far.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.ran))
	for i, c := range f.ran {
		lines[i] = c.String()
	}
	return lines
}

// Ran reports whether the exact command line was run.
func (f *Fake) Ran(line string) bool {
	for _, l := range f.Commands() {
		if l == line {
			return true
		}
	}
	return false
}

// Cmds returns the full commands run so far.
func (f *Fake) Cmds() []shell.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Cmd(nil), f.ran...)
}

// Find returns the last command whose line starts with prefix.
func (f *Fake) Find(prefix string) (shell.Cmd, bool) {
	cmds := f.Cmds()
	for i := len(cmds) - 1; i >= 0; i-- {
		if strings.HasPrefix(cmds[i].String(), prefix) {
			return cmds[i], true
		}
	}
	return shell.Cmd{}, false
}
