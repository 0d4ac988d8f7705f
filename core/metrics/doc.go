// Package metrics defines the events recorded while fetching the option
// catalog, requesting predictions and pricing batches, and the sink
// interfaces that persist them. Concrete sinks (Prometheus, InfluxDB) live in
// infra/metrics and register themselves by type name; NewMetricsSink builds
// them from configuration.
package metrics
