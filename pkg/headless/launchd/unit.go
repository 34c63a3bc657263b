// Package launchd registers per-user launch agents: it renders a Unit to a
// property list under ~/Library/LaunchAgents and drives launchctl to load,
// unload, start and stop it.
package launchd

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Unit is a declarative launch agent.
type Unit struct {
	// Label is the reverse-DNS job name, e.g. com.headless.ollama.
	Label string

	// Program is the absolute path of the executable.
	Program string
	Args    []string

	WorkingDirectory string
	Environment      map[string]string

	StdoutPath string
	StderrPath string

	// RunAtLoad starts the job when it is loaded, including at login.
	RunAtLoad bool

	// KeepAlive restarts the job whenever it exits.
	KeepAlive bool
}

// Validate checks the fields launchd requires.
func (u Unit) Validate() error {
	switch {
	case u.Label == "":
		return errors.New("launchd unit: label is required")
	case strings.ContainsAny(u.Label, "/ "):
		return fmt.Errorf("launchd unit: invalid label %q", u.Label)
	case u.Program == "":
		return fmt.Errorf("launchd unit %s: program is required", u.Label)
	}
	return nil
}

type envVar struct {
	Key, Value string
}

type plistData struct {
	Unit
	ProgramArguments []string
	Env              []envVar
}

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key>
  <string>{{ xml .Label }}</string>
  <key>ProgramArguments</key>
  <array>
{{- range .ProgramArguments }}
    <string>{{ xml . }}</string>
{{- end }}
  </array>
{{- if .WorkingDirectory }}
  <key>WorkingDirectory</key>
  <string>{{ xml .WorkingDirectory }}</string>
{{- end }}
{{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
{{- range .Env }}
    <key>{{ xml .Key }}</key>
    <string>{{ xml .Value }}</string>
{{- end }}
  </dict>
{{- end }}
  <key>RunAtLoad</key>
  {{ if .RunAtLoad }}<true/>{{ else }}<false/>{{ end }}
  <key>KeepAlive</key>
  {{ if .KeepAlive }}<true/>{{ else }}<false/>{{ end }}
{{- if .StdoutPath }}
  <key>StandardOutPath</key>
  <string>{{ xml .StdoutPath }}</string>
{{- end }}
{{- if .StderrPath }}
  <key>StandardErrorPath</key>
  <string>{{ xml .StderrPath }}</string>
{{- end }}
</dict>
</plist>
`

var tmpl = template.Must(template.New("plist").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(plistTemplate))

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Render returns the property list for u. Environment keys are sorted so
// the output is stable.
func Render(u Unit) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	data := plistData{
		Unit:             u,
		ProgramArguments: append([]string{u.Program}, u.Args...),
	}
	keys := make([]string, 0, len(u.Environment))
	for k := range u.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Env = append(data.Env, envVar{Key: k, Value: u.Environment[k]})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", u.Label, err)
	}
	return buf.Bytes(), nil
}
