package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/infra/logger"
)

// influxTimeout bounds the health check and each point write.
const influxTimeout = 5 * time.Second

// InfluxSink writes one point per prediction, catalog read and batch.
// Measurements: prediction_request, catalog_fetch, batch_prediction.
type InfluxSink struct {
	client influxdb2.Client
	points api.WriteAPIBlocking
	log    logger.Logger
}

// NewInfluxSink targets the InfluxDB server at url. A trailing write path,
// as copied from the Influx UI, is accepted.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	opts := influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: influxTimeout})
	c := influxdb2.NewClientWithOptions(strings.TrimSuffix(url, "/api/v2/write"), token, opts)
	return &InfluxSink{client: c, points: c.WriteAPIBlocking(org, bucket), log: logger.New("influx-sink")}
}

// NewInfluxSinkWithFallback returns a NopSink when the server does not pass
// its health check.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	s := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), influxTimeout)
	defer cancel()
	h, err := s.client.Health(ctx)
	switch {
	case err != nil:
		s.log.Errorf("influx at %s unreachable, metrics disabled: %v", url, err)
	case h.Status != "pass":
		s.log.Errorf("influx at %s reports %s, metrics disabled", url, h.Status)
	default:
		return s
	}
	s.client.Close()
	return coremetrics.NopSink{}
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), influxTimeout)
	defer cancel()
	return s.points.WritePoint(ctx, p)
}

// RecordPrediction writes a prediction_request point tagged by outcome.
func (s *InfluxSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	p := write.NewPointWithMeasurement("prediction_request").
		AddTag("outcome", string(ev.Outcome)).
		AddTag("component", "renderer")
	if ev.Brand != "" {
		p.AddTag("brand", ev.Brand)
	}
	if ev.RequestID != "" {
		p.AddTag("request_id", ev.RequestID)
	}
	p.AddField("latency_ms", millis(ev.Latency))
	if ev.Outcome == coremetrics.OutcomeSuccess {
		p.AddField("predicted_price", round3(ev.PredictedPrice))
	}
	if ev.Error != "" {
		p.AddField("error", ev.Error)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordCatalogFetch writes a catalog_fetch point.
func (s *InfluxSink) RecordCatalogFetch(ev coremetrics.CatalogFetchEvent) error {
	return s.write(write.NewPointWithMeasurement("catalog_fetch").
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddTag("component", "form").
		AddField("brands", ev.Brands).
		AddField("latency_ms", millis(ev.Latency)).
		SetTime(ev.Time))
}

// RecordBatch writes a batch_prediction point.
func (s *InfluxSink) RecordBatch(ev coremetrics.BatchEvent) error {
	return s.write(write.NewPointWithMeasurement("batch_prediction").
		AddTag("component", "batch").
		AddField("size", ev.Size).
		AddField("succeeded", ev.Succeeded).
		AddField("failed", ev.Failed).
		AddField("mean_price", round3(ev.MeanPrice)).
		AddField("latency_ms", millis(ev.Latency)).
		SetTime(ev.Time))
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func millis(d time.Duration) float64 { return round3(d.Seconds() * 1000) }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
