package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// SinkConfig selects a sink by type. Settings are decoded by the sink's
// constructor.
type SinkConfig struct {
	Type     string         `json:"type"`
	Settings map[string]any `json:"settings"`
}

// SinkConstructor builds a sink from its raw settings.
type SinkConstructor func(settings map[string]any) (MetricsSink, error)

var (
	sinksMu      sync.RWMutex
	constructors = map[string]SinkConstructor{}
)

// RegisterMetricsSink makes a sink type available to NewMetricsSink.
func RegisterMetricsSink(name string, c SinkConstructor) error {
	if c == nil {
		return fmt.Errorf("metrics sink %s: nil constructor", name)
	}
	sinksMu.Lock()
	defer sinksMu.Unlock()
	if _, dup := constructors[name]; dup {
		return fmt.Errorf("metrics sink %s already registered", name)
	}
	constructors[name] = c
	return nil
}

// SinkTypes lists the registered sink types, sorted.
func SinkTypes() []string {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewMetricsSink builds the configured sinks. No configuration yields a
// NopSink, several yield a MultiSink.
func NewMetricsSink(cfgs []SinkConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		sinksMu.RLock()
		build, ok := constructors[c.Type]
		sinksMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown metrics sink %q (known: %v)", c.Type, SinkTypes())
		}
		s, err := build(c.Settings)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %s: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// DecodeSettings fills out from raw sink settings using json tags. Strings
// are converted to numbers where needed, as env overrides are strings.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(settings)
}
