package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/carprice/config"
	"github.com/kilianp07/carprice/core/batch"
	"github.com/kilianp07/carprice/core/form"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
	"github.com/kilianp07/carprice/infra/api"
	"github.com/kilianp07/carprice/infra/logger"
	"github.com/kilianp07/carprice/infra/metrics"
	"github.com/kilianp07/carprice/infra/monitoring"
	"github.com/kilianp07/carprice/infra/mqtt"
)

// Service wires a Session to the configured predictor, metrics sinks and
// outcome publisher.
type Service struct {
	*Session

	client    *api.Client
	sink      coremetrics.MetricsSink
	publisher *mqtt.OutcomePublisher
	monitor   monitoring.Monitor
	promAddr  string
	log       logger.Logger

	cancel    context.CancelFunc
	observers sync.WaitGroup
	wg        sync.WaitGroup
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.LoggerOptions()); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.Metrics.PrometheusAddr != "" && !hasPromSink(sink) {
		prom, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sink = coremetrics.NewMultiSink(sink, prom)
	}

	var pub *mqtt.OutcomePublisher
	if cfg.MQTT.Enabled() {
		if pub, err = mqtt.NewOutcomePublisher(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger.New("api-client")),
	)
	return &Service{
		Session:   NewSession(client, SessionOptions{Logger: logger.New("session"), Sink: sink}),
		client:    client,
		sink:      sink,
		publisher: pub,
		monitor:   monitor,
		promAddr:  cfg.Metrics.PrometheusAddr,
		log:       logg,
	}, nil
}

func hasPromSink(s coremetrics.MetricsSink) bool {
	if _, ok := s.(*metrics.PromSink); ok {
		return true
	}
	if m, ok := s.(*coremetrics.MultiSink); ok {
		for _, inner := range m.Sinks {
			if _, ok := inner.(*metrics.PromSink); ok {
				return true
			}
		}
	}
	return false
}

// Start loads the catalog and starts the background observers: metrics
// collection, error reporting, MQTT publication and the Prometheus endpoint.
// Observers run until the renderer bus is closed or ctx ends; only the
// Prometheus endpoint is stopped by Close's cancel.
func (s *Service) Start(ctx context.Context) <-chan error {
	done := metrics.StartStateCollector(ctx, s.Renderer(), s.sink)
	s.observers.Add(1)
	go func() {
		defer s.observers.Done()
		<-done
	}()
	watched := monitoring.WatchFailures(ctx, s.Renderer(), s.monitor)
	s.observers.Add(1)
	go func() {
		defer s.observers.Done()
		<-watched
	}()
	if s.publisher != nil {
		published := s.publisher.Start(ctx, s.Renderer())
		s.observers.Add(1)
		go func() {
			defer s.observers.Done()
			<-published
		}()
	}
	if s.promAddr != "" {
		promCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := metrics.StartPromServer(promCtx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.Session.Start(ctx)
}

// Client returns the predictor client.
func (s *Service) Client() *api.Client { return s.client }

// Health queries the predictor readiness endpoint.
func (s *Service) Health(ctx context.Context) (prediction.Health, error) {
	return s.client.Health(ctx)
}

// Batch prices qs in one request after client side validation.
func (s *Service) Batch(ctx context.Context, qs []model.VehicleQuery) (batch.Report, error) {
	r := &batch.Runner{
		Predictor: s.client,
		Validate:  func(q model.VehicleQuery) error { return form.Validate(q, time.Now()) },
		Logger:    logger.New("batch"),
	}
	if rec, ok := s.sink.(coremetrics.BatchRecorder); ok {
		r.Recorder = rec
	}
	return r.Run(ctx, qs)
}

// Close closes the session, waits for the observers to handle the states
// still buffered, then stops the Prometheus endpoint and releases the
// connections.
func (s *Service) Close() error {
	s.Session.Close()
	s.observers.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.monitor.Flush(2 * time.Second)
	return logger.Close()
}
