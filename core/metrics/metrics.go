package metrics

import "time"

// Outcome classifies how a prediction attempt ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected"
	OutcomeStale    Outcome = "stale"
)

// PredictionEvent describes a single prediction attempt.
type PredictionEvent struct {
	RequestID      string
	Brand          string
	Outcome        Outcome
	PredictedPrice float64
	Latency        time.Duration
	Error          string
	Time           time.Time
}

// CatalogFetchEvent describes a single option catalog read.
type CatalogFetchEvent struct {
	Success bool
	Brands  int
	Latency time.Duration
	Error   string
	Time    time.Time
}

// BatchEvent summarises a batch prediction.
type BatchEvent struct {
	Size      int
	Succeeded int
	Failed    int
	MeanPrice float64
	Latency   time.Duration
	Time      time.Time
}

// MetricsSink records prediction attempts.
type MetricsSink interface {
	RecordPrediction(ev PredictionEvent) error
}

// CatalogRecorder records option catalog reads.
type CatalogRecorder interface {
	RecordCatalogFetch(ev CatalogFetchEvent) error
}

// BatchRecorder records batch predictions.
type BatchRecorder interface {
	RecordBatch(ev BatchEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPrediction(PredictionEvent) error     { return nil }
func (NopSink) RecordCatalogFetch(CatalogFetchEvent) error { return nil }
func (NopSink) RecordBatch(BatchEvent) error               { return nil }

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPrediction forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPrediction(ev PredictionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPrediction(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCatalogFetch forwards catalog events to sinks that support them.
func (m *MultiSink) RecordCatalogFetch(ev CatalogFetchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CatalogRecorder); ok {
			if err := rec.RecordCatalogFetch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBatch forwards batch events to sinks that support them.
func (m *MultiSink) RecordBatch(ev BatchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BatchRecorder); ok {
			if err := rec.RecordBatch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing io.Closer-like Close.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
