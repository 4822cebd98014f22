// Package metrics exports dispatch activity as Prometheus metrics.
package metrics
