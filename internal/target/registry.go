package target

import (
	"fmt"
	"sort"
	"strings"

	"fdep/internal/console"
)

// Registry holds the targets of one descriptor. It is built once at
// startup and only read afterwards.
type Registry struct {
	targets map[string]*Target
}

// NewRegistry creates a registry over the given targets.
func NewRegistry(targets map[string]*Target) *Registry {
	if targets == nil {
		targets = make(map[string]*Target)
	}
	return &Registry{targets: targets}
}

// Get retrieves a target by name.
func (r *Registry) Get(name string) (*Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("target '%s' not found (available: %v)", name, r.Names())
	}
	return t, nil
}

// Names returns all target names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of targets.
func (r *Registry) Count() int {
	return len(r.targets)
}

// Select resolves a target, prints its summary and, when the target asks
// for it, confirms the choice with the operator.
func (r *Registry) Select(c *console.Console, name string) (*Target, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if err := Confirm(c, t); err != nil {
		return nil, err
	}
	return t, nil
}

// PrintSummary prints the deployment configuration table.
func PrintSummary(c *console.Console, t *Target) {
	c.Section("Deployment configuration")
	c.Row("Name:", t.ProjectName)
	c.Row("Target:", t.Name)
	c.Row("User:", t.User)
	c.Row("Host(s):", t.HostsString())
	c.Warn("- - - - - - - - - - - - - - - - - - - -")
}

// Confirm prints the summary and asks for confirmation on targets marked
// warn_on_deploy. A declined answer returns ErrCancelled, and so does a
// console that cannot prompt.
func Confirm(c *console.Console, t *Target) error {
	PrintSummary(c, t)

	if !t.WarnOnDeploy {
		return nil
	}
	if !c.Interactive() {
		return fmt.Errorf("%w: target %s needs confirmation and no terminal is attached, pass --yes to proceed", ErrCancelled, t.Name)
	}
	question := fmt.Sprintf("Are you sure you want to work on *%s* server?", strings.ToUpper(t.Name))
	if !c.Confirm(question, true) {
		return ErrCancelled
	}
	return nil
}
