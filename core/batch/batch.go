// Package batch prices a list of vehicles in one predictor round trip and
// summarises the outcome.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/carprice/core/logger"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
)

// ErrEmpty is returned when there is nothing to price.
var ErrEmpty = errors.New("batch: no vehicles")

// Item is the outcome for one vehicle, in input order.
type Item struct {
	Index   int
	Query   model.VehicleQuery
	Result  *model.PredictionResult
	Message string
	// Rejected marks vehicles that failed client side validation and were
	// never sent.
	Rejected bool
}

// OK reports whether the vehicle got a price.
func (i Item) OK() bool { return i.Result != nil }

// Summary holds statistics over the predicted prices.
type Summary struct {
	Count     int
	Succeeded int
	Failed    int
	Mean      float64
	StdDev    float64
	Median    float64
	Min       float64
	Max       float64
}

// Report is the result of Run.
type Report struct {
	Items   []Item
	Summary Summary
	Latency time.Duration
}

// Runner sends batches to a BatchPredictor.
type Runner struct {
	Predictor prediction.BatchPredictor
	// Validate, when set, filters vehicles before sending.
	Validate func(model.VehicleQuery) error
	Recorder coremetrics.BatchRecorder
	Logger   logger.Logger
	Now      func() time.Time
}

// Run prices qs. Vehicles rejected by Validate are reported without being
// sent; if none remain no request is made.
func (r *Runner) Run(ctx context.Context, qs []model.VehicleQuery) (Report, error) {
	if len(qs) == 0 {
		return Report{}, ErrEmpty
	}
	log := r.Logger
	if log == nil {
		log = logger.Nop{}
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	items := make([]Item, len(qs))
	var send []model.VehicleQuery
	var sendIdx []int
	for i, q := range qs {
		items[i] = Item{Index: i, Query: q}
		if r.Validate != nil {
			if err := r.Validate(q); err != nil {
				items[i].Message = prediction.DisplayMessage(err)
				items[i].Rejected = true
				continue
			}
		}
		send = append(send, q)
		sendIdx = append(sendIdx, i)
	}

	start := now()
	if len(send) > 0 {
		resp, err := r.Predictor.PredictBatch(ctx, send)
		if err != nil {
			return Report{}, fmt.Errorf("predict batch: %w", err)
		}
		if !resp.Success {
			msg := resp.Error
			if msg == "" {
				msg = prediction.MsgPredictionFailed
			}
			return Report{}, &prediction.RequestError{Message: msg}
		}
		if len(resp.Results) != len(send) {
			return Report{}, fmt.Errorf("predict batch: %d results for %d vehicles", len(resp.Results), len(send))
		}
		for j, res := range resp.Results {
			it := &items[sendIdx[j]]
			if !res.Success {
				it.Message = res.Error
				if it.Message == "" {
					it.Message = prediction.MsgPredictionFailed
				}
				continue
			}
			pr := res.PredictionResult
			it.Result = &pr
		}
	}

	rep := Report{Items: items, Summary: Summarize(items), Latency: now().Sub(start)}
	log.Infof("batch priced %d/%d vehicles", rep.Summary.Succeeded, rep.Summary.Count)
	if r.Recorder != nil {
		ev := coremetrics.BatchEvent{
			Size:      rep.Summary.Count,
			Succeeded: rep.Summary.Succeeded,
			Failed:    rep.Summary.Failed,
			MeanPrice: rep.Summary.Mean,
			Latency:   rep.Latency,
			Time:      now(),
		}
		if err := r.Recorder.RecordBatch(ev); err != nil {
			log.Errorf("record batch: %v", err)
		}
	}
	return rep, nil
}

// Summarize computes statistics over the priced items. Price statistics are
// zero when nothing was priced.
func Summarize(items []Item) Summary {
	s := Summary{Count: len(items)}
	prices := make([]float64, 0, len(items))
	for _, it := range items {
		if it.OK() {
			prices = append(prices, it.Result.PredictedPrice)
		}
	}
	s.Succeeded = len(prices)
	s.Failed = s.Count - s.Succeeded
	if len(prices) == 0 {
		return s
	}
	sort.Float64s(prices)
	s.Mean = stat.Mean(prices, nil)
	if len(prices) > 1 {
		s.StdDev = stat.StdDev(prices, nil)
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, prices, nil)
	s.Min = floats.Min(prices)
	s.Max = floats.Max(prices)
	return s
}
