// Package metrics implements the Prometheus and InfluxDB sinks declared in
// core/metrics, registers them by name for configuration-driven creation and
// collects prediction outcomes from the renderer's state bus.
package metrics
