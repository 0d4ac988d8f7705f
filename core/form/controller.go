package form

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/carprice/core/logger"
	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
)

// Controller owns the vehicle query being edited and the option catalog.
type Controller struct {
	source   prediction.Predictor
	log      logger.Logger
	recorder coremetrics.CatalogRecorder
	now      func() time.Time

	mu         sync.Mutex
	query      model.VehicleQuery
	catalog    model.OptionCatalog
	catalogErr error
	loaded     bool
	pending    *Task
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides time.Now, which drives the default year and the
// year upper bound.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRecorder records every catalog read.
func WithRecorder(r coremetrics.CatalogRecorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewController returns a controller holding the default query and the
// built-in catalog. source is read by LoadOptions.
func NewController(source prediction.Predictor, opts ...Option) *Controller {
	c := &Controller{
		source:   source,
		log:      logger.Nop{},
		recorder: coremetrics.NopSink{},
		now:      time.Now,
		catalog:  model.DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.query = model.DefaultQuery(c.now())
	return c
}

// Task is a cancellable catalog load.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Wait blocks until the load finished or was cancelled and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the load finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel aborts the underlying request. The catalog is left untouched.
func (t *Task) Cancel() { t.cancel() }

// LoadOptions starts reading the option catalog in the background and
// returns at once; the form stays usable with the current options. Calling it
// while a load is pending returns the pending task.
func (c *Controller) LoadOptions(ctx context.Context) *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return c.pending
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	if c.closed {
		cancel()
		t.err = context.Canceled
		close(t.done)
		return t
	}
	c.pending = t
	go c.load(ctx, t)
	return t
}

func (c *Controller) load(ctx context.Context, t *Task) {
	defer close(t.done)
	defer t.cancel()

	start := c.now()
	resp, err := c.source.FetchCatalog(ctx)
	ev := coremetrics.CatalogFetchEvent{Latency: c.now().Sub(start), Time: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if ctx.Err() != nil {
		// torn down or cancelled: drop the result
		t.err = ctx.Err()
		c.log.Debugf("catalog load cancelled: %v", ctx.Err())
		return
	}
	switch {
	case err != nil:
		t.err = &CatalogError{Message: MsgCatalogNetwork, Err: err}
	case !resp.Success:
		var cause error
		if resp.Error != "" {
			cause = errors.New(resp.Error)
		}
		t.err = &CatalogError{Message: MsgCatalogUnavailable, Err: cause}
	default:
		c.applyCatalog(resp)
	}
	if t.err != nil {
		c.catalogErr = t.err
		ev.Error = t.err.Error()
		c.log.Warnf("option catalog unavailable, keeping defaults: %v", t.err)
	} else {
		ev.Success = true
		ev.Brands = len(c.catalog.Brands)
		c.log.Infof("option catalog loaded: %d brands", len(c.catalog.Brands))
	}
	if rerr := c.recorder.RecordCatalogFetch(ev); rerr != nil {
		c.log.Errorf("record catalog fetch: %v", rerr)
	}
}

// applyCatalog must be called with c.mu held.
func (c *Controller) applyCatalog(resp prediction.CatalogResponse) {
	next := model.OptionCatalog{
		Brands:          append([]string{}, resp.Brands...),
		Energies:        c.catalog.Energies,
		Transmissions:   c.catalog.Transmissions,
		LuxuryBrands:    resp.LuxuryBrands,
		BrandCategories: resp.BrandCategories,
	}
	if len(resp.Energies) > 0 {
		next.Energies = append([]string{}, resp.Energies...)
	}
	if len(resp.Transmissions) > 0 {
		next.Transmissions = append([]string{}, resp.Transmissions...)
	}
	c.catalog = next.Clone()
	c.catalogErr = nil
	c.loaded = true
	if c.query.Brand == "" && len(next.Brands) > 0 {
		c.query.Brand = next.Brands[0]
	}
}

// Close cancels a pending catalog load. Later loads return immediately.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	t := c.pending
	c.mu.Unlock()
	if t != nil {
		t.Cancel()
		<-t.done
	}
}

// UpdateField applies one edit. name is the wire name of the field. Numeric
// fields are parsed, a blank value counts as zero; other fields are stored
// as given, except that the brand takes the catalog spelling when one
// matches.
func (c *Controller) UpdateField(name, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case model.FieldBrand:
		c.query.Brand = canonical(raw, c.catalog.Brands)
	case model.FieldModel:
		c.query.Model = raw
	case model.FieldEnergy:
		c.query.Energy = canonical(raw, c.catalog.Energies)
	case model.FieldTransmission:
		c.query.Transmission = canonical(raw, c.catalog.Transmissions)
	case model.FieldYear, model.FieldMileage, model.FieldFiscalPower:
		n, err := parseNumber(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		switch name {
		case model.FieldYear:
			c.query.Year = n
		case model.FieldMileage:
			c.query.Mileage = n
		default:
			c.query.FiscalPower = n
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// parseNumber accepts integers and decimals ("50000", "7.0", " 12 ").
// Decimals are truncated toward zero. NaN, infinities and values outside
// the int range are refused.
func parseNumber(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}
	return int(f), nil
}

// SetQuery replaces the whole query.
func (c *Controller) SetQuery(q model.VehicleQuery) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

// Query returns a snapshot of the query being edited.
func (c *Controller) Query() model.VehicleQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Catalog returns a snapshot of the option catalog.
func (c *Controller) Catalog() model.OptionCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Clone()
}

// CatalogLoaded reports whether a remote catalog has been applied.
func (c *Controller) CatalogLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// CatalogError returns the error of the last failed catalog load, if any.
func (c *Controller) CatalogError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalogErr
}

// Validate checks the current query.
func (c *Controller) Validate() (model.VehicleQuery, error) {
	q := c.Query()
	return q, Validate(q, c.now())
}
