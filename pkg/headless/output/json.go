package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/headless/pkg/headless/history"
)

// JSONFormatter writes indented JSON documents.
type JSONFormatter struct{}

func (f *JSONFormatter) encode(w *bytes.Buffer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatStatus writes the report.
func (f *JSONFormatter) FormatStatus(w *bytes.Buffer, r *Report) error {
	return f.encode(w, r)
}

// FormatAdvice writes the advice.
func (f *JSONFormatter) FormatAdvice(w *bytes.Buffer, a *Advice) error {
	return f.encode(w, a)
}

// FormatHistory writes the entries as an array; an empty history is [].
func (f *JSONFormatter) FormatHistory(w *bytes.Buffer, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	return f.encode(w, entries)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
