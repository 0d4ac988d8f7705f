package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilianp07/carprice/core/prediction"
	"github.com/kilianp07/carprice/infra/logger"
)

// StateSource publishes renderer transitions.
type StateSource interface {
	Subscribe() <-chan prediction.State
	Unsubscribe(ch <-chan prediction.State)
}

// Outcome is the JSON document published for every resolved prediction.
type Outcome struct {
	RequestID      string  `json:"request_id,omitempty"`
	Generation     uint64  `json:"generation"`
	Phase          string  `json:"phase"`
	Rejected       bool    `json:"rejected,omitempty"`
	Brand          string  `json:"marque"`
	Model          string  `json:"modele,omitempty"`
	Year           int     `json:"annee"`
	Mileage        int     `json:"kilometrage"`
	PredictedPrice float64 `json:"prix_predit,omitempty"`
	PriceMin       float64 `json:"prix_min,omitempty"`
	PriceMax       float64 `json:"prix_max,omitempty"`
	Message        string  `json:"message,omitempty"`
	LatencyMS      int64   `json:"latency_ms"`
	Timestamp      int64   `json:"timestamp"`
}

// NewOutcome converts a terminal state. ok is false for Idle and Submitting.
func NewOutcome(st prediction.State) (Outcome, bool) {
	if st.Phase != prediction.Success && st.Phase != prediction.Failed {
		return Outcome{}, false
	}
	o := Outcome{
		RequestID:  st.RequestID,
		Generation: st.Generation,
		Phase:      st.Phase.String(),
		Rejected:   st.Rejected,
		Brand:      st.Query.Brand,
		Model:      st.Query.Model,
		Year:       st.Query.Year,
		Mileage:    st.Query.Mileage,
		Message:    st.Message,
		LatencyMS:  st.Latency().Milliseconds(),
		Timestamp:  st.FinishedAt.UnixMilli(),
	}
	if st.Result != nil {
		o.PredictedPrice = st.Result.PredictedPrice
		o.PriceMin = st.Result.PriceMin
		o.PriceMax = st.Result.PriceMax
	}
	return o, true
}

// OutcomePublisher sends prediction outcomes to <topic>/<phase>.
type OutcomePublisher struct {
	cli        pahoClient
	topic      string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger
}

// NewOutcomePublisher connects to the broker described by cfg.
func NewOutcomePublisher(cfg Config) (*OutcomePublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	cli, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}
	return &OutcomePublisher{
		cli:        cli,
		topic:      cfg.Topic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}, nil
}

// Publish sends one outcome, retrying with exponential backoff.
func (p *OutcomePublisher) Publish(o Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s", p.topic, o.Phase)
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published outcome %d to %s", o.Generation, topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish to %s: %w", topic, publishErr)
}

// Run publishes every terminal state of src until ctx is canceled or src is
// closed. Startup notices (generation 0) are skipped.
func (p *OutcomePublisher) Run(ctx context.Context, src StateSource) {
	p.loop(ctx, src, src.Subscribe())
}

// Start subscribes to src before returning and publishes in the background.
// The returned channel is closed once src is closed or ctx ends.
func (p *OutcomePublisher) Start(ctx context.Context, src StateSource) <-chan struct{} {
	done := make(chan struct{})
	sub := src.Subscribe()
	go func() {
		defer close(done)
		p.loop(ctx, src, sub)
	}()
	return done
}

func (p *OutcomePublisher) loop(ctx context.Context, src StateSource, sub <-chan prediction.State) {
	defer src.Unsubscribe(sub)
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-sub:
			if !ok {
				return
			}
			if st.Generation == 0 || st.Generation == last {
				continue
			}
			o, ok := NewOutcome(st)
			if !ok {
				continue
			}
			last = st.Generation
			if err := p.Publish(o); err != nil {
				p.logger.Errorf("outcome %d dropped: %v", o.Generation, err)
			}
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *OutcomePublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
