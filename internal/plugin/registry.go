package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"
)

var (
	ErrDuplicateHandler    = errors.New("duplicate handler name")
	ErrInvalidRegistration = errors.New("invalid handler registration")
	ErrRegistrySealed      = errors.New("registry is sealed")
	ErrUnknownHandler      = errors.New("unknown handler")
	ErrDuplicateEnabled    = errors.New("handler enabled more than once")
	ErrInvalidOptions      = errors.New("invalid handler options")
)

// StartupError is a configuration problem detected while wiring handlers.
// It is fatal: the process must not start serving.
type StartupError struct {
	Name string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("plugin %q: %v", e.Name, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Registration binds a unique name to a handler factory.
type Registration struct {
	// Name is the lowercase identifier used in the /alert/{name} path.
	Name        string
	Description string
	Factory     Factory
}

// Registry is the set of known handler implementations.
//
// Registrations happen once during process initialization. After Seal the
// registry is immutable and Resolve needs no locking.
type Registry struct {
	regs   map[string]*Registration
	sealed atomic.Bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]*Registration)}
}

// Register adds reg. It fails on an invalid or duplicate name, a nil
// factory, or when the registry has been sealed.
func (r *Registry) Register(reg Registration) error {
	if r.sealed.Load() {
		return &StartupError{Name: reg.Name, Err: ErrRegistrySealed}
	}
	if !namePattern.MatchString(reg.Name) {
		return &StartupError{Name: reg.Name, Err: fmt.Errorf("%w: name must match %s", ErrInvalidRegistration, namePattern)}
	}
	if reg.Factory == nil {
		return &StartupError{Name: reg.Name, Err: fmt.Errorf("%w: nil factory", ErrInvalidRegistration)}
	}
	if _, ok := r.regs[reg.Name]; ok {
		return &StartupError{Name: reg.Name, Err: ErrDuplicateHandler}
	}
	r.regs[reg.Name] = &reg
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(regs ...Registration) {
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
}

// Seal makes the registry immutable.
func (r *Registry) Seal() { r.sealed.Store(true) }

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

// Resolve looks up a registration by name.
func (r *Registry) Resolve(name string) (*Registration, bool) {
	reg, ok := r.regs[name]
	return reg, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.regs))
	for name := range r.regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registrations.
func (r *Registry) Len() int { return len(r.regs) }
