// Package monitoring reports failed predictions to Sentry.
package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/carprice/core/prediction"
)

// Config holds the Sentry settings. An empty DSN disables reporting.
type Config struct {
	DSN              string  `json:"sentry_dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate must be within [0, 1]")
	}
	return nil
}

// Monitor receives errors worth an alert.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor drops everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

// NewSentryMonitor initialises the Sentry SDK. It returns a NopMonitor when
// no DSN is configured.
func NewSentryMonitor(cfg Config) (Monitor, error) {
	if cfg.DSN == "" {
		return NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return sentryMonitor{}, nil
}

type sentryMonitor struct{}

func (sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }

// StateSource publishes renderer transitions.
type StateSource interface {
	Subscribe() <-chan prediction.State
	Unsubscribe(ch <-chan prediction.State)
}

// WatchFailures reports every prediction that failed after a request was
// sent. Validation rejections and startup notices are not reported. The
// returned channel is closed when ctx is canceled or src is closed.
func WatchFailures(ctx context.Context, src StateSource, m Monitor) <-chan struct{} {
	done := make(chan struct{})
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
				if st.Phase != prediction.Failed || st.Rejected || st.Generation == 0 || st.Generation == last {
					continue
				}
				last = st.Generation
				m.CaptureException(st.Err(), map[string]string{
					"request_id": st.RequestID,
					"brand":      st.Query.Brand,
					"generation": strconv.FormatUint(st.Generation, 10),
				})
			}
		}
	}()
	return done
}
