package component

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jamesainslie/headless/pkg/headless/history"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
)

// Dispatcher resolves component names and runs verbs, journaling each run.
type Dispatcher struct {
	components []Component
	journal    history.Journal
	out        io.Writer
}

// NewDispatcher returns a dispatcher over components in setup order.
// A nil journal discards entries; a nil out discards progress lines.
func NewDispatcher(journal history.Journal, out io.Writer, components ...Component) *Dispatcher {
	if journal == nil {
		journal = history.Discard{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{components: components, journal: journal, out: out}
}

// Names returns the component names in setup order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.components))
	for i, c := range d.components {
		names[i] = c.Name()
	}
	return names
}

// Components returns the components in setup order.
func (d *Dispatcher) Components() []Component {
	return slices.Clone(d.components)
}

// Lookup finds a component by name.
func (d *Dispatcher) Lookup(name string) (Component, error) {
	for _, c := range d.components {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown component %q (choose from %v or %s)", name, d.Names(), All)
}

// Targets resolves name to the components a verb runs against, in the
// order it runs them: disable and remove tear down in reverse.
func (d *Dispatcher) Targets(verb Verb, name string) ([]Component, error) {
	if name != All {
		c, err := d.Lookup(name)
		if err != nil {
			return nil, err
		}
		return []Component{c}, nil
	}

	targets := slices.Clone(d.components)
	if verb == VerbDisable || verb == VerbRemove {
		slices.Reverse(targets)
	}
	return targets, nil
}

// Run executes a mutating verb against name, which may be All. With All,
// components that do not support the verb are skipped and the first
// failure or cancellation stops the run.
func (d *Dispatcher) Run(ctx context.Context, verb Verb, name string) error {
	if !verb.Mutates() {
		return fmt.Errorf("%s is not a mutating verb", verb)
	}

	targets, err := d.Targets(verb, name)
	if err != nil {
		return err
	}

	for _, c := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.runOne(ctx, verb, c, name)
		if errors.Is(err, ErrUnsupported) && name == All {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runOne runs verb on c. requested is the name given to Run and is kept
// with the entry so runs started with all can be told apart.
func (d *Dispatcher) runOne(ctx context.Context, verb Verb, c Component, requested string) error {
	log := logging.Get("dispatch")
	fmt.Fprintf(d.out, "==> %s %s\n", verb, c.Name())

	start := time.Now()
	err := Run(ctx, c, verb)
	entry := history.Entry{
		Timestamp: start,
		Verb:      string(verb),
		Component: c.Name(),
		Duration:  time.Since(start),
		Details:   map[string]string{"requested": requested},
	}

	switch {
	case err == nil:
		entry.Outcome = history.OutcomeOK
	case errors.Is(err, ErrUnsupported):
		entry.Outcome = history.OutcomeSkipped
		err = fmt.Errorf("%s: %s: %w", c.Name(), verb, ErrUnsupported)
		fmt.Fprintf(d.out, "    %s does not support %s, skipping\n", c.Name(), verb)
	case errors.Is(err, prompt.ErrCancelled):
		entry.Outcome = history.OutcomeCancelled
	default:
		entry.Outcome = history.OutcomeFailed
		err = Step(c.Name(), string(verb), err)
		entry.Error = err.Error()
	}

	if _, jerr := d.journal.Record(entry); jerr != nil {
		log.Warn("could not journal run", "verb", verb, "component", c.Name(), "error", jerr)
	}
	log.Info("verb finished", "verb", verb, "component", c.Name(), "outcome", entry.Outcome, "duration", entry.Duration)
	return err
}

// Status collects the status of name, which may be All. A component whose
// status fails is reported with Error set instead of failing the whole report.
func (d *Dispatcher) Status(ctx context.Context, name string) (*output.Report, error) {
	targets, err := d.Targets(VerbStatus, name)
	if err != nil {
		return nil, err
	}

	report := &output.Report{GeneratedAt: time.Now()}
	for _, c := range targets {
		st, err := c.Status(ctx)
		if st.Name == "" {
			st.Name = c.Name()
		}
		if st.Description == "" {
			st.Description = c.Description()
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			st.Error = err.Error()
			logging.Get("dispatch").Warn("status failed", "component", c.Name(), "error", err)
		}
		report.Components = append(report.Components, st)
	}
	return report, nil
}
