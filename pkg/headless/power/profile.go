// Package power switches the machine between the headless pmset profile
// (never sleep, wake on LAN, restart after power loss) and a regular
// desktop profile, keeping a backup of the settings it replaced.
package power

import (
	"fmt"
	"sort"
	"strings"
)

// Profile maps pmset setting names to values.
type Profile map[string]string

// HeadlessProfile is applied by setup and enable.
func HeadlessProfile() Profile {
	return Profile{
		"sleep":        "0",
		"disksleep":    "0",
		"displaysleep": "10",
		"womp":         "1",
		"autorestart":  "1",
		"powernap":     "0",
		"tcpkeepalive": "1",
		"standby":      "0",
	}
}

// RestoreProfile is applied by disable when no backup exists.
func RestoreProfile() Profile {
	return Profile{
		"sleep":        "1",
		"disksleep":    "10",
		"displaysleep": "10",
		"womp":         "1",
		"autorestart":  "0",
		"powernap":     "1",
		"tcpkeepalive": "1",
		"standby":      "1",
	}
}

// Merge returns a copy of p with overrides applied.
func (p Profile) Merge(overrides map[string]string) Profile {
	out := make(Profile, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// Keys returns the setting names in sorted order.
func (p Profile) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subset returns the values of p for the keys of target. Keys missing from
// p are omitted.
func (p Profile) Subset(target Profile) Profile {
	out := make(Profile, len(target))
	for k := range target {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Args renders p as pmset arguments: key value pairs in sorted key order.
func (p Profile) Args() []string {
	args := make([]string, 0, 2*len(p))
	for _, k := range p.Keys() {
		args = append(args, k, p[k])
	}
	return args
}

// Setting is one row of a comparison between current and target values.
type Setting struct {
	Name    string `json:"name" yaml:"name"`
	Current string `json:"current" yaml:"current"`
	Target  string `json:"target" yaml:"target"`
}

// Matches reports whether the current value equals the target.
func (s Setting) Matches() bool {
	return s.Current == s.Target
}

// Compare lines up current against target for every target key. Settings
// the machine does not report have an empty Current.
func Compare(current, target Profile) []Setting {
	rows := make([]Setting, 0, len(target))
	for _, k := range target.Keys() {
		rows = append(rows, Setting{Name: k, Current: current[k], Target: target[k]})
	}
	return rows
}

// AllMatch reports whether every row matches.
func AllMatch(rows []Setting) bool {
	for _, r := range rows {
		if !r.Matches() {
			return false
		}
	}
	return true
}

// Validate rejects setting names and values pmset would choke on.
func (p Profile) Validate() error {
	for k, v := range p {
		if k == "" || strings.ContainsAny(k, " \t-") {
			return fmt.Errorf("invalid pmset setting name %q", k)
		}
		if v == "" || strings.ContainsAny(v, " \t") {
			return fmt.Errorf("invalid value %q for pmset setting %s", v, k)
		}
	}
	return nil
}
