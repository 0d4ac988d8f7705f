package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/carprice/core/metrics"
)

// PromSink records catalog and prediction events in Prometheus metrics.
type PromSink struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	prices   prometheus.Histogram
	catalog  *prometheus.CounterVec
	brands   prometheus.Gauge
	batch    *prometheus.CounterVec
}

// NewPromSink registers the client metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carprice_prediction_requests_total",
		Help: "Prediction attempts by outcome",
	}, []string{"outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carprice_prediction_latency_seconds",
		Help:    "Time between submission and resolution of a prediction",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	prices := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carprice_predicted_price_dt",
		Help:    "Distribution of predicted prices in DT",
		Buckets: prometheus.ExponentialBuckets(5000, 2, 8),
	})
	catalog := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carprice_catalog_fetch_total",
		Help: "Option catalog reads by result",
	}, []string{"success"})
	brands := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "carprice_catalog_brands",
		Help: "Number of brands in the last loaded catalog",
	})
	batch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carprice_batch_vehicles_total",
		Help: "Vehicles priced through batch predictions by result",
	}, []string{"result"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if prices, err = register(reg, prices); err != nil {
		return nil, err
	}
	if catalog, err = register(reg, catalog); err != nil {
		return nil, err
	}
	if brands, err = register(reg, brands); err != nil {
		return nil, err
	}
	if batch, err = register(reg, batch); err != nil {
		return nil, err
	}
	return &PromSink{
		requests: requests,
		latency:  latency,
		prices:   prices,
		catalog:  catalog,
		brands:   brands,
		batch:    batch,
	}, nil
}

// register registers c, reusing an already registered collector of the same type.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPrediction counts the attempt and observes its latency.
func (s *PromSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	outcome := string(ev.Outcome)
	s.requests.WithLabelValues(outcome).Inc()
	if ev.Latency > 0 {
		s.latency.WithLabelValues(outcome).Observe(ev.Latency.Seconds())
	}
	if ev.Outcome == coremetrics.OutcomeSuccess {
		s.prices.Observe(ev.PredictedPrice)
	}
	return nil
}

// RecordCatalogFetch counts catalog reads and tracks the brand count.
func (s *PromSink) RecordCatalogFetch(ev coremetrics.CatalogFetchEvent) error {
	s.catalog.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	if ev.Success {
		s.brands.Set(float64(ev.Brands))
	}
	return nil
}

// RecordBatch counts priced and rejected vehicles of a batch.
func (s *PromSink) RecordBatch(ev coremetrics.BatchEvent) error {
	s.batch.WithLabelValues("success").Add(float64(ev.Succeeded))
	s.batch.WithLabelValues("failed").Add(float64(ev.Failed))
	return nil
}
