package prediction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/carprice/core/logger"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/internal/eventbus"
)

// Phase is the lifecycle position of the renderer.
type Phase int

const (
	Idle Phase = iota
	Submitting
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the renderer. At most one of Result and
// Message is set.
type State struct {
	Phase      Phase
	Result     *model.PredictionResult
	Message    string
	Generation uint64
	RequestID  string
	Query      model.VehicleQuery
	// Rejected marks failures raised before any request was sent.
	Rejected   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Busy reports whether a submission is in flight; the submit control is
// disabled meanwhile.
func (s State) Busy() bool { return s.Phase == Submitting }

// Latency returns the time the submission took to resolve.
func (s State) Latency() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Err returns a *RequestError for Failed states and nil otherwise.
func (s State) Err() error {
	if s.Phase != Failed {
		return nil
	}
	return &RequestError{Message: s.Message}
}

// Renderer runs the Idle -> Submitting -> Success|Failed state machine.
type Renderer struct {
	predictor Predictor
	bus       *eventbus.TypedBus[State]
	log       logger.Logger
	sink      coremetrics.MetricsSink
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	state State
	gen   uint64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSink records discarded stale responses.
func WithSink(s coremetrics.MetricsSink) Option {
	return func(r *Renderer) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithRequestIDs overrides the request identifier generator.
func WithRequestIDs(gen func() string) Option {
	return func(r *Renderer) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRenderer returns a Renderer in the Idle state.
func NewRenderer(p Predictor, opts ...Option) *Renderer {
	r := &Renderer{
		predictor: p,
		bus:       eventbus.NewTyped[State](0),
		log:       logger.Nop{},
		sink:      coremetrics.NopSink{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.bus.Publish(r.state)
	return r
}

// State returns the current snapshot.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe returns a channel receiving every transition, starting with the
// current state.
func (r *Renderer) Subscribe() <-chan State { return r.bus.Subscribe() }

// Unsubscribe stops delivery to ch and closes it.
func (r *Renderer) Unsubscribe(ch <-chan State) { r.bus.Unsubscribe(ch) }

// Close closes every subscription.
func (r *Renderer) Close() { r.bus.Close() }

// Submit clears any previous outcome, enters Submitting and sends exactly one
// prediction request for q. It blocks until the request resolves and returns
// the resulting state. If another Submit or Reject started meanwhile the
// response is dropped and ErrStale is returned with the current state.
func (r *Renderer) Submit(ctx context.Context, q model.VehicleQuery) (State, error) {
	r.mu.Lock()
	r.gen++
	pending := State{
		Phase:      Submitting,
		Generation: r.gen,
		RequestID:  r.newID(),
		Query:      q,
		StartedAt:  r.now(),
	}
	r.transition(pending)
	r.mu.Unlock()

	r.log.Debugw("prediction submitted", map[string]any{
		"request_id": pending.RequestID,
		"generation": pending.Generation,
		"brand":      q.Brand,
	})
	resp, err := r.predictor.Predict(ContextWithRequestID(ctx, pending.RequestID), q)
	next := resolve(pending, resp, err)
	next.FinishedAt = r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != pending.Generation {
		r.log.Warnf("discarding stale response %s (generation %d, current %d)", pending.RequestID, pending.Generation, r.gen)
		if err := r.sink.RecordPrediction(coremetrics.PredictionEvent{
			RequestID: pending.RequestID,
			Brand:     q.Brand,
			Outcome:   coremetrics.OutcomeStale,
			Latency:   next.Latency(),
			Time:      next.FinishedAt,
		}); err != nil {
			r.log.Errorf("record stale prediction %s: %v", pending.RequestID, err)
		}
		return r.state, ErrStale
	}
	if next.Phase == Failed {
		r.log.Infof("prediction %s failed: %s", pending.RequestID, next.Message)
	} else {
		r.log.Infof("prediction %s: %.0f DT", pending.RequestID, next.Result.PredictedPrice)
	}
	r.transition(next)
	return next, nil
}

// Reject records a failure detected before sending, typically a validation
// error. No request is sent and any in-flight response becomes stale.
func (r *Renderer) Reject(q model.VehicleQuery, cause error) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	now := r.now()
	st := State{
		Phase:      Failed,
		Message:    DisplayMessage(cause),
		Generation: r.gen,
		Query:      q,
		Rejected:   true,
		StartedAt:  now,
		FinishedAt: now,
	}
	r.transition(st)
	return st
}

// ReportIfIdle shows msg as the current error when nothing was submitted yet.
// It reports whether the message was applied.
func (r *Renderer) ReportIfIdle(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != Idle || r.gen != 0 {
		return false
	}
	st := State{Phase: Failed, Message: msg, Rejected: true}
	r.transition(st)
	return true
}

// transition must be called with r.mu held.
func (r *Renderer) transition(st State) {
	r.state = st
	r.bus.Publish(st)
}

func resolve(pending State, resp Response, err error) State {
	next := pending
	switch {
	case err != nil:
		next.Phase = Failed
		next.Message = DisplayMessage(err)
	case !resp.Success:
		next.Phase = Failed
		next.Message = resp.Error
		if next.Message == "" {
			next.Message = MsgPredictionFailed
		}
	default:
		res := resp.PredictionResult
		next.Phase = Success
		next.Result = &res
	}
	return next
}
