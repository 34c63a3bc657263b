// Package component defines the contract every configurable piece of the
// machine (Homebrew, power settings, Ollama, Colima) implements, and the
// dispatcher that runs a verb against one component or all of them.
package component

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
)

// Verb is an operation a component can perform.
type Verb string

// Verbs.
const (
	VerbSetup   Verb = "setup"
	VerbEnable  Verb = "enable"
	VerbDisable Verb = "disable"
	VerbRemove  Verb = "remove"
	VerbStatus  Verb = "status"
)

// Verbs lists all verbs in menu order.
func Verbs() []Verb {
	return []Verb{VerbSetup, VerbEnable, VerbDisable, VerbRemove, VerbStatus}
}

// ParseVerb validates s.
func ParseVerb(s string) (Verb, error) {
	for _, v := range Verbs() {
		if string(v) == strings.ToLower(s) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown verb %q", s)
}

// Mutates reports whether the verb changes the machine.
func (v Verb) Mutates() bool {
	return v != VerbStatus
}

// All is the pseudo-component name that targets every component.
const All = "all"

// Component is one configurable piece of the machine.
type Component interface {
	Name() string
	Description() string

	// Setup installs and configures the component, prompting as needed.
	Setup(ctx context.Context) error

	// Enable activates an installed component.
	Enable(ctx context.Context) error

	// Disable deactivates the component without removing it.
	Disable(ctx context.Context) error

	// Remove uninstalls the component after double confirmation.
	Remove(ctx context.Context) error

	// Status reports the component's state without changing anything.
	Status(ctx context.Context) (output.ComponentStatus, error)
}

// ErrUnsupported is returned by a verb that has no meaning for a component.
var ErrUnsupported = errors.New("not supported")

// StepError names the component and step that failed.
type StepError struct {
	Component string
	Step      string
	Err       error
}

func (e *StepError) Error() string {
	return e.Component + ": " + e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step wraps err as a StepError. Nil, cancellation and existing StepErrors
// pass through unchanged.
func Step(component, step string, err error) error {
	if err == nil || errors.Is(err, prompt.ErrCancelled) {
		return err
	}
	var se *StepError
	if errors.As(err, &se) {
		return err
	}
	return &StepError{Component: component, Step: step, Err: err}
}

// Run invokes verb on c. Status results are discarded; use c.Status.
func Run(ctx context.Context, c Component, verb Verb) error {
	switch verb {
	case VerbSetup:
		return c.Setup(ctx)
	case VerbEnable:
		return c.Enable(ctx)
	case VerbDisable:
		return c.Disable(ctx)
	case VerbRemove:
		return c.Remove(ctx)
	case VerbStatus:
		_, err := c.Status(ctx)
		return err
	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}
