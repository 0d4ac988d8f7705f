// Package infra groups the adapters behind the core interfaces: the HTTP
// predictor client, the zerolog logger, the Prometheus and InfluxDB sinks and
// the MQTT outcome publisher.
package infra
