package output

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/headless/pkg/headless/history"
)

// YAMLFormatter writes the same documents as JSONFormatter in YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) encode(w *bytes.Buffer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// FormatStatus writes the report.
func (f *YAMLFormatter) FormatStatus(w *bytes.Buffer, r *Report) error {
	return f.encode(w, r)
}

// FormatAdvice writes the advice.
func (f *YAMLFormatter) FormatAdvice(w *bytes.Buffer, a *Advice) error {
	return f.encode(w, a)
}

// FormatHistory writes the entries as a sequence.
func (f *YAMLFormatter) FormatHistory(w *bytes.Buffer, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	return f.encode(w, entries)
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var _ Formatter = (*YAMLFormatter)(nil)
