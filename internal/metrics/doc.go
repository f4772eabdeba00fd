// Package metrics exposes Prometheus counters for the asset cache on a private
// registry, so tests and multiple service instances never collide on the
// global default registry.
package metrics
