package plugin

import (
	"errors"
	"fmt"
	"io"
)

// Enabled is the administrator-selected subset of registered handlers, each
// instantiated once with its options. It is read-only after Enable returns.
type Enabled struct {
	reg      *Registry
	handlers map[string]Handler
	order    []string
}

// Enable seals reg and instantiates every handler named in names, in order,
// passing it options[name]. An enabled name missing from the registry, a name
// enabled twice, options for an unregistered name and a factory error are all
// reported as *StartupError.
func Enable(reg *Registry, env Env, names []string, options map[string]Options) (*Enabled, error) {
	reg.Seal()
	env = env.withDefaults()

	for name := range options {
		if _, ok := reg.Resolve(name); !ok {
			return nil, &StartupError{Name: name, Err: fmt.Errorf("%w: options given for unregistered handler", ErrUnknownHandler)}
		}
	}

	e := &Enabled{
		reg:      reg,
		handlers: make(map[string]Handler, len(names)),
		order:    make([]string, 0, len(names)),
	}
	for _, name := range names {
		r, ok := reg.Resolve(name)
		if !ok {
			e.Close() //nolint:errcheck
			return nil, &StartupError{Name: name, Err: ErrUnknownHandler}
		}
		if _, dup := e.handlers[name]; dup {
			e.Close() //nolint:errcheck
			return nil, &StartupError{Name: name, Err: ErrDuplicateEnabled}
		}

		log := env.Logger.WithField("plugin", name)
		h, err := r.Factory(Env{Logger: log, Stdout: env.Stdout}, options[name])
		if err != nil {
			e.Close() //nolint:errcheck
			return nil, &StartupError{Name: name, Err: fmt.Errorf("%w: %v", ErrInvalidOptions, err)}
		}
		if h == nil {
			e.Close() //nolint:errcheck
			return nil, &StartupError{Name: name, Err: fmt.Errorf("%w: factory returned nil handler", ErrInvalidRegistration)}
		}

		e.handlers[name] = h
		e.order = append(e.order, name)
		log.Debug("plugin enabled")
	}
	return e, nil
}

// Registry returns the sealed registry the set was built from.
func (e *Enabled) Registry() *Registry { return e.reg }

// Handler returns the instance for name if it is enabled.
func (e *Enabled) Handler(name string) (Handler, bool) {
	h, ok := e.handlers[name]
	return h, ok
}

// IsEnabled reports whether name is enabled.
func (e *Enabled) IsEnabled(name string) bool {
	_, ok := e.handlers[name]
	return ok
}

// Names returns enabled names in configuration order.
func (e *Enabled) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of enabled handlers.
func (e *Enabled) Len() int { return len(e.order) }

// Close closes every enabled handler that implements io.Closer.
func (e *Enabled) Close() error {
	var errs []error
	for _, name := range e.order {
		if c, ok := e.handlers[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
