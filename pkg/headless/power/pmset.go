package power

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// Controller reads and writes power settings.
type Controller interface {
	Query(ctx context.Context) (Profile, error)
	Apply(ctx context.Context, p Profile) error
}

// PMSet is the Controller backed by /usr/bin/pmset.
type PMSet struct {
	Runner shell.Runner
}

// Query parses `pmset -g`, which reports the settings in effect for the
// current power source as "name value" lines.
func (p PMSet) Query(ctx context.Context) (Profile, error) {
	res, err := p.Runner.Run(ctx, shell.Command("pmset", "-g"))
	if err != nil {
		return nil, fmt.Errorf("reading power settings: %w", err)
	}
	return ParsePMSet(res.Stdout), nil
}

// Apply sets p for all power sources. pmset needs root, so the command runs
// through sudo with the terminal attached for the password prompt.
func (p PMSet) Apply(ctx context.Context, profile Profile) error {
	if len(profile) == 0 {
		return nil
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	args := append([]string{"pmset", "-a"}, profile.Args()...)
	cmd := shell.Cmd{Name: "sudo", Args: args, Interactive: true}
	if _, err := p.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("applying power settings: %w", err)
	}

	logging.Get("power").Info("pmset applied", "settings", strings.Join(profile.Args(), " "))
	return nil
}

// ParsePMSet extracts "name value" pairs. Header lines and values with
// trailing annotations such as "sleep 0 (sleep prevented by ...)" are
// handled by keeping only the first two fields.
func ParsePMSet(out string) Profile {
	profile := make(Profile)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			// Section headers ("System-wide power settings:",
			// "Currently in use:") are not indented.
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		profile[fields[0]] = fields[1]
	}
	return profile
}
