// Package metrics exposes the pipeline's operational instruments.
package metrics

// Config labels instruments with service identity.
type Config struct {
	ServiceName string
	Environment string
}
