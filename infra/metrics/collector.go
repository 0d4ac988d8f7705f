package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/prediction"
	"github.com/kilianp07/carprice/infra/logger"
)

// StateSource publishes renderer transitions.
type StateSource interface {
	Subscribe() <-chan prediction.State
	Unsubscribe(ch <-chan prediction.State)
}

// StartStateCollector subscribes to the renderer and records one prediction
// event per terminal state. It stops when the context is canceled or the
// source is closed. The returned channel is closed once the collector exits.
func StartStateCollector(ctx context.Context, src StateSource, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if src == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("state-collector")
	sub := src.Subscribe()
	go func() {
		defer close(done)
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
				// generation 0 is the initial state or a startup notice
				if st.Generation == 0 || st.Generation == last {
					continue
				}
				ev, ok := eventFor(st)
				if !ok {
					continue
				}
				last = st.Generation
				if err := sink.RecordPrediction(ev); err != nil {
					log.Errorf("record prediction %s: %v", ev.RequestID, err)
				}
			}
		}
	}()
	return done
}

func eventFor(st prediction.State) (coremetrics.PredictionEvent, bool) {
	ev := coremetrics.PredictionEvent{
		RequestID: st.RequestID,
		Brand:     st.Query.Brand,
		Latency:   st.Latency(),
		Time:      st.FinishedAt,
	}
	switch {
	case st.Phase == prediction.Success && st.Result != nil:
		ev.Outcome = coremetrics.OutcomeSuccess
		ev.PredictedPrice = st.Result.PredictedPrice
	case st.Phase == prediction.Failed && st.Rejected:
		ev.Outcome = coremetrics.OutcomeRejected
		ev.Error = st.Message
	case st.Phase == prediction.Failed:
		ev.Outcome = coremetrics.OutcomeFailed
		ev.Error = st.Message
	default:
		return coremetrics.PredictionEvent{}, false
	}
	return ev, true
}
