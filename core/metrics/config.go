package metrics

// Config lists the sinks prediction outcomes are recorded to.
type Config struct {
	Sinks []SinkConfig `json:"sinks"`
	// PrometheusAddr, when set, exposes /metrics on that address.
	PrometheusAddr string `json:"prometheus_addr"`
}
