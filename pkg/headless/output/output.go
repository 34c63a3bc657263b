// Package output renders status reports, allocation advice and history
// in the formats selectable with --output: pretty, plain, json and yaml.
//
// The package uses a registry so formatters are looked up by name:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.FormatStatus(&buf, report); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/history"
)

// Detail is one labelled fact in a component's status.
type Detail struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ComponentStatus is what a component reports for the status verb.
type ComponentStatus struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Installed means the component's software or configuration is present.
	Installed bool `json:"installed" yaml:"installed"`

	// Enabled means the component is active: service loaded, VM running,
	// headless power profile in effect.
	Enabled bool `json:"enabled" yaml:"enabled"`

	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Details  []Detail `json:"details,omitempty" yaml:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Error is set when the status could not be determined.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Add appends a detail row.
func (s *ComponentStatus) Add(key, format string, args ...any) {
	s.Details = append(s.Details, Detail{Key: key, Value: fmt.Sprintf(format, args...)})
}

// Warn appends a warning.
func (s *ComponentStatus) Warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// State summarises Installed and Enabled in one word.
func (s ComponentStatus) State() string {
	switch {
	case s.Error != "":
		return "unknown"
	case !s.Installed:
		return "not installed"
	case s.Enabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// Report is the output of the status verb.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Hostname    string            `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Components  []ComponentStatus `json:"components" yaml:"components"`
}

// Advice is the output of the advise command and of colima setup.
type Advice struct {
	TotalRAMGB    int `json:"total_ram_gb" yaml:"total_ram_gb"`
	TotalCPUCores int `json:"total_cpu_cores" yaml:"total_cpu_cores"`

	InferenceRunning    bool `json:"inference_running" yaml:"inference_running"`
	InferenceObservedGB int  `json:"inference_observed_gb" yaml:"inference_observed_gb"`

	// Simulated is set when the inputs came from flags, not the machine.
	Simulated bool `json:"simulated" yaml:"simulated"`

	CPUCores            int      `json:"cpu_cores" yaml:"cpu_cores"`
	RAMGB               int      `json:"ram_gb" yaml:"ram_gb"`
	DiskGB              int      `json:"disk_gb" yaml:"disk_gb"`
	InferenceEstimateGB int      `json:"inference_estimate_gb" yaml:"inference_estimate_gb"`
	LowResources        bool     `json:"low_resources" yaml:"low_resources"`
	Warnings            []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewAdvice combines advisor inputs and result.
func NewAdvice(res advisor.SystemResources, inf advisor.InferenceWorkload, rec advisor.Recommendation) *Advice {
	return &Advice{
		TotalRAMGB:          res.TotalRAMGB,
		TotalCPUCores:       res.TotalCPUCores,
		InferenceRunning:    inf.Running,
		InferenceObservedGB: inf.ObservedRAMGB,
		CPUCores:            rec.CPUCores,
		RAMGB:               rec.RAMGB,
		DiskGB:              rec.DiskGB,
		InferenceEstimateGB: rec.InferenceEstimateGB,
		LowResources:        rec.LowResources,
		Warnings:            rec.Warnings,
	}
}

// Formatter renders each kind of result.
type Formatter interface {
	FormatStatus(w *bytes.Buffer, r *Report) error
	FormatAdvice(w *bytes.Buffer, a *Advice) error
	FormatHistory(w *bytes.Buffer, entries []history.Entry) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter factory.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.availableLocked())
	}
	return factory(), nil
}

// Available returns the sorted formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the default registry's formatters.
func Available() []string {
	return DefaultRegistry.Available()
}
