// Package plugins lists the handlers compiled into the binary.
package plugins

import (
	"github.com/dawidmalina/alertops/internal/plugin"
	"github.com/dawidmalina/alertops/internal/plugins/dump"
	"github.com/dawidmalina/alertops/internal/plugins/logger"
	"github.com/dawidmalina/alertops/internal/plugins/recall"
)

// Builtin returns the registrations of every built-in handler.
func Builtin() []plugin.Registration {
	return []plugin.Registration{
		logger.Registration(),
		dump.Registration(),
		recall.Registration(),
	}
}

// Register adds every built-in handler to reg.
func Register(reg *plugin.Registry) error {
	for _, r := range Builtin() {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
