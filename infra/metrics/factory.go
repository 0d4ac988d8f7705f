package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/carprice/core/metrics"
)

// InfluxSettings configures the "influx" sink.
type InfluxSettings struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	// metrics.prometheus_addr serves the collectors registered here.
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})
	_ = coremetrics.RegisterMetricsSink("influx", func(settings map[string]any) (coremetrics.MetricsSink, error) {
		var s InfluxSettings
		if err := coremetrics.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(s.URL, s.Token, s.Org, s.Bucket), nil
	})
}
