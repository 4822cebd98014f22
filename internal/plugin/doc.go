// Package plugin defines the handler contract, the registry of known handler
// implementations and the enabled set derived from configuration.
//
// Lifecycle:
//
//	reg := plugin.NewRegistry()
//	reg.MustRegister(plugin.Registration{Name: "logger", Factory: newLogger})
//	enabled, err := plugin.Enable(reg, env, cfg.Enabled, cfg.Options)
//
// Enable seals the registry; from then on both the registry and the enabled
// set are read-only and may be shared across goroutines without locking.
package plugin
