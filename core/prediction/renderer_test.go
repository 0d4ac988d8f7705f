package prediction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carprice/core/logger"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
)

func validQuery() model.VehicleQuery {
	return model.VehicleQuery{
		Brand: "BMW", Model: "Série 3", Year: 2020, Mileage: 50000,
		Energy: "Diesel", Transmission: "Manuelle", FiscalPower: 7,
	}
}

func bmwAnswer() Response {
	return Response{Success: true, PredictionResult: model.PredictionResult{
		PredictedPrice: 45000, PriceMin: 42000, PriceMax: 48000,
		Brand: "BMW", Model: "Série 3", Year: 2020, Mileage: 50000, Age: 5,
	}}
}

func TestRendererStartsIdle(t *testing.T) {
	r := NewRenderer(&MockPredictor{})
	st := r.State()
	assert.Equal(t, Idle, st.Phase)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Message)
	assert.False(t, st.Busy())
}

func TestRendererSuccess(t *testing.T) {
	m := &MockPredictor{Answer: bmwAnswer()}
	r := NewRenderer(m, WithRequestIDs(func() string { return "req-1" }))
	st, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	assert.Equal(t, Success, st.Phase)
	require.NotNil(t, st.Result)
	assert.Equal(t, 45000.0, st.Result.PredictedPrice)
	assert.Equal(t, 5, st.Result.Age)
	assert.Empty(t, st.Message)
	assert.Equal(t, "req-1", st.RequestID)
	assert.Len(t, m.Calls(), 1)
	assert.NoError(t, st.Err())
}

func TestRendererForwardsRequestID(t *testing.T) {
	var seen string
	m := &MockPredictor{PredictFunc: func(ctx context.Context, _ model.VehicleQuery) (Response, error) {
		seen, _ = RequestIDFromContext(ctx)
		return bmwAnswer(), nil
	}}
	r := NewRenderer(m, WithRequestIDs(func() string { return "abc" }))
	_, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)
}

func TestRendererFailureMessages(t *testing.T) {
	cases := []struct {
		name string
		resp Response
		err  error
		want string
	}{
		{"server error message", Response{Success: false, Error: "modèle inconnu"}, nil, "modèle inconnu"},
		{"server failure without message", Response{Success: false}, nil, MsgPredictionFailed},
		{"status with body error", Response{}, &StatusError{StatusCode: 400, Message: "Missing fields: ['annee']"}, "Missing fields: ['annee']"},
		{"status without body", Response{}, &StatusError{StatusCode: 502}, "request failed with status code 502"},
		{"no response", Response{}, &TransportError{Err: errors.New("dial tcp: connection refused")}, MsgNetwork},
		{"other error", Response{}, errors.New("decode prediction response: EOF"), "decode prediction response: EOF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRenderer(&MockPredictor{Answer: tc.resp, AnswerErr: tc.err})
			st, err := r.Submit(context.Background(), validQuery())
			require.NoError(t, err)
			assert.Equal(t, Failed, st.Phase)
			assert.Nil(t, st.Result)
			assert.Equal(t, tc.want, st.Message)
			assert.False(t, st.Rejected)
			var re *RequestError
			require.ErrorAs(t, st.Err(), &re)
			assert.Equal(t, tc.want, re.UserMessage())
		})
	}
}

func TestRendererPublishesTransitions(t *testing.T) {
	r := NewRenderer(&MockPredictor{Answer: bmwAnswer()})
	ch := r.Subscribe()
	assert.Equal(t, Idle, (<-ch).Phase)

	_, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	submitting := <-ch
	assert.Equal(t, Submitting, submitting.Phase)
	assert.True(t, submitting.Busy())
	assert.Nil(t, submitting.Result)
	assert.Empty(t, submitting.Message)
	assert.Equal(t, Success, (<-ch).Phase)
	r.Close()
}

func TestRendererResubmitClearsPreviousOutcome(t *testing.T) {
	m := &MockPredictor{Answer: Response{Success: false, Error: "modèle inconnu"}}
	r := NewRenderer(m)
	st, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	require.Equal(t, Failed, st.Phase)

	ch := r.Subscribe()
	<-ch // current Failed state
	m.PredictFunc = func(context.Context, model.VehicleQuery) (Response, error) { return bmwAnswer(), nil }
	st, err = r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	pending := <-ch
	assert.Equal(t, Submitting, pending.Phase)
	assert.Empty(t, pending.Message)
	assert.Equal(t, Success, st.Phase)
	assert.Empty(t, st.Message)
}

func TestRendererDiscardsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := &MockPredictor{PredictFunc: func(_ context.Context, q model.VehicleQuery) (Response, error) {
		if q.Model == "slow" {
			close(started)
			<-release
			return Response{Success: true, PredictionResult: model.PredictionResult{PredictedPrice: 1}}, nil
		}
		return bmwAnswer(), nil
	}}
	r := NewRenderer(m)

	slow := validQuery()
	slow.Model = "slow"
	type outcome struct {
		st  State
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := r.Submit(context.Background(), slow)
		done <- outcome{st, err}
	}()
	<-started

	fast, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	require.Equal(t, Success, fast.Phase)

	close(release)
	var res outcome
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("slow submission did not return")
	}
	assert.ErrorIs(t, res.err, ErrStale)
	assert.Equal(t, fast.Generation, res.st.Generation)
	assert.Equal(t, 45000.0, r.State().Result.PredictedPrice)
}

type valErr struct{}

func (valErr) Error() string       { return "missing brand" }
func (valErr) UserMessage() string { return "Veuillez sélectionner une marque." }

func TestRendererReject(t *testing.T) {
	m := &MockPredictor{Answer: bmwAnswer()}
	r := NewRenderer(m)
	st := r.Reject(model.VehicleQuery{}, valErr{})
	assert.Equal(t, Failed, st.Phase)
	assert.True(t, st.Rejected)
	assert.Equal(t, "Veuillez sélectionner une marque.", st.Message)
	assert.Empty(t, m.Calls())
}

func TestRendererReportIfIdle(t *testing.T) {
	r := NewRenderer(&MockPredictor{Answer: bmwAnswer()})
	assert.True(t, r.ReportIfIdle("Erreur réseau lors de récupération des marques."))
	assert.Equal(t, Failed, r.State().Phase)

	r2 := NewRenderer(&MockPredictor{Answer: bmwAnswer()})
	_, err := r2.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	assert.False(t, r2.ReportIfIdle("late catalog error"))
	assert.Equal(t, Success, r2.State().Phase)
}

func TestStateLatency(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := State{StartedAt: base, FinishedAt: base.Add(250 * time.Millisecond)}
	assert.Equal(t, 250*time.Millisecond, st.Latency())
	assert.Zero(t, State{}.Latency())
}

type failingSink struct{}

func (failingSink) RecordPrediction(coremetrics.PredictionEvent) error {
	return errors.New("sink unavailable")
}

type errorLog struct {
	logger.Nop
	lines chan string
}

func (l errorLog) Errorf(format string, args ...any) {
	l.lines <- fmt.Sprintf(format, args...)
}

func TestRendererLogsStaleSinkError(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := &MockPredictor{PredictFunc: func(_ context.Context, q model.VehicleQuery) (Response, error) {
		if q.Model == "slow" {
			close(started)
			<-release
		}
		return bmwAnswer(), nil
	}}
	log := errorLog{lines: make(chan string, 4)}
	r := NewRenderer(m, WithSink(failingSink{}), WithLogger(log))

	slow := validQuery()
	slow.Model = "slow"
	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), slow)
		done <- err
	}()
	<-started
	_, err := r.Submit(context.Background(), validQuery())
	require.NoError(t, err)
	close(release)

	require.ErrorIs(t, <-done, ErrStale)
	select {
	case line := <-log.lines:
		assert.Contains(t, line, "sink unavailable")
	default:
		t.Fatal("sink error was not logged")
	}
}
