package app

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/carprice/core/form"
	"github.com/kilianp07/carprice/core/logger"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/prediction"
)

// Session is one form with its prediction panel.
type Session struct {
	form     *form.Controller
	renderer *prediction.Renderer
	log      logger.Logger
	now      func() time.Time
}

// SessionOptions wires optional collaborators. Zero values are fine.
type SessionOptions struct {
	Logger logger.Logger
	Sink   coremetrics.MetricsSink
	Now    func() time.Time
	// RequestIDs overrides the request identifier generator.
	RequestIDs func() string
}

// NewSession builds a session backed by p.
func NewSession(p prediction.Predictor, o SessionOptions) *Session {
	if o.Logger == nil {
		o.Logger = logger.Nop{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	fopts := []form.Option{form.WithLogger(o.Logger), form.WithClock(o.Now)}
	if rec, ok := o.Sink.(coremetrics.CatalogRecorder); ok {
		fopts = append(fopts, form.WithRecorder(rec))
	}
	return &Session{
		form: form.NewController(p, fopts...),
		renderer: prediction.NewRenderer(p,
			prediction.WithLogger(o.Logger),
			prediction.WithClock(o.Now),
			prediction.WithSink(o.Sink),
			prediction.WithRequestIDs(o.RequestIDs),
		),
		log: o.Logger,
		now: o.Now,
	}
}

// Form returns the form controller.
func (s *Session) Form() *form.Controller { return s.form }

// Renderer returns the prediction renderer.
func (s *Session) Renderer() *prediction.Renderer { return s.renderer }

// Start loads the option catalog in the background. The returned channel
// yields the load error, nil on success, once the outcome has been applied.
// A failed load is shown as the panel error while nothing was submitted.
func (s *Session) Start(ctx context.Context) <-chan error {
	task := s.form.LoadOptions(ctx)
	out := make(chan error, 1)
	go func() {
		defer close(out)
		err := task.Wait()
		var ce *form.CatalogError
		if errors.As(err, &ce) {
			if s.renderer.ReportIfIdle(ce.UserMessage()) {
				s.log.Debugf("catalog failure shown: %s", ce.UserMessage())
			}
		}
		out <- err
	}()
	return out
}

// Submit validates the current query and sends it. A validation failure
// is shown without any request being sent and is returned as the error.
func (s *Session) Submit(ctx context.Context) (prediction.State, error) {
	q, err := s.form.Validate()
	if err != nil {
		s.log.Infof("query rejected: %v", err)
		return s.renderer.Reject(q, err), err
	}
	return s.renderer.Submit(ctx, q)
}

// Close cancels the catalog load and ends renderer subscriptions.
func (s *Session) Close() {
	s.form.Close()
	s.renderer.Close()
}
