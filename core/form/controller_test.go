package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/carprice/core/metrics"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
)

func fixedClock() time.Time { return refNow }

type recordingRecorder struct {
	mu     sync.Mutex
	events []coremetrics.CatalogFetchEvent
}

func (r *recordingRecorder) RecordCatalogFetch(ev coremetrics.CatalogFetchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// blockingPredictor holds FetchCatalog until the context ends.
type blockingPredictor struct {
	prediction.MockPredictor
	started chan struct{}
}

func (b *blockingPredictor) FetchCatalog(ctx context.Context) (prediction.CatalogResponse, error) {
	close(b.started)
	<-ctx.Done()
	return prediction.CatalogResponse{Success: true, Brands: []string{"Late"}}, nil
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController(&prediction.MockPredictor{}, WithClock(fixedClock))
	q := c.Query()
	assert.Equal(t, "", q.Brand)
	assert.Equal(t, 2025, q.Year)
	assert.Equal(t, 50000, q.Mileage)
	assert.Equal(t, "Diesel", q.Energy)
	assert.Equal(t, "Manuelle", q.Transmission)
	assert.Equal(t, 7, q.FiscalPower)

	cat := c.Catalog()
	assert.Empty(t, cat.Brands)
	assert.Equal(t, model.DefaultEnergies(), cat.Energies)
	assert.Equal(t, model.DefaultTransmissions(), cat.Transmissions)
	assert.False(t, c.CatalogLoaded())
}

func TestLoadOptionsAppliesCatalog(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{
		Success:       true,
		Brands:        []string{"BMW", "Renault"},
		Energies:      []string{"Diesel"},
		Transmissions: []string{"Manuelle"},
	}}
	rec := &recordingRecorder{}
	c := NewController(m, WithClock(fixedClock), WithRecorder(rec))
	require.NoError(t, c.LoadOptions(context.Background()).Wait())

	assert.Equal(t, "BMW", c.Query().Brand)
	cat := c.Catalog()
	assert.Equal(t, []string{"BMW", "Renault"}, cat.Brands)
	assert.Equal(t, []string{"Diesel"}, cat.Energies)
	assert.Equal(t, []string{"Manuelle"}, cat.Transmissions)
	assert.True(t, c.CatalogLoaded())
	assert.NoError(t, c.CatalogError())

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Success)
	assert.Equal(t, 2, rec.events[0].Brands)
}

func TestLoadOptionsKeepsDefaultListsWhenAbsent(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{
		Success: true,
		Brands:  []string{"Peugeot"},
	}}
	c := NewController(m, WithClock(fixedClock))
	require.NoError(t, c.LoadOptions(context.Background()).Wait())

	cat := c.Catalog()
	assert.Equal(t, []string{"Peugeot"}, cat.Brands)
	assert.Equal(t, model.DefaultEnergies(), cat.Energies)
	assert.Equal(t, model.DefaultTransmissions(), cat.Transmissions)
}

func TestLoadOptionsDoesNotOverrideChosenBrand(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{
		Success: true,
		Brands:  []string{"BMW", "Renault"},
	}}
	c := NewController(m, WithClock(fixedClock))
	require.NoError(t, c.UpdateField(model.FieldBrand, "Renault"))
	require.NoError(t, c.LoadOptions(context.Background()).Wait())
	assert.Equal(t, "Renault", c.Query().Brand)
}

func TestLoadOptionsUnsuccessfulPayload(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{Success: false, Error: "db down"}}
	rec := &recordingRecorder{}
	c := NewController(m, WithClock(fixedClock), WithRecorder(rec))
	err := c.LoadOptions(context.Background()).Wait()
	require.ErrorIs(t, err, ErrOptionFetch)

	var ce *CatalogError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, MsgCatalogUnavailable, ce.UserMessage())
	assert.Equal(t, err, c.CatalogError())

	cat := c.Catalog()
	assert.Empty(t, cat.Brands)
	assert.Equal(t, model.DefaultEnergies(), cat.Energies)
	assert.Equal(t, model.DefaultTransmissions(), cat.Transmissions)
	assert.Equal(t, "", c.Query().Brand)

	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Success)
}

func TestLoadOptionsTransportFailure(t *testing.T) {
	cause := &prediction.TransportError{Err: errors.New("connection refused")}
	m := &prediction.MockPredictor{CatalogErr: cause}
	c := NewController(m, WithClock(fixedClock))
	err := c.LoadOptions(context.Background()).Wait()
	require.ErrorIs(t, err, ErrOptionFetch)
	assert.ErrorIs(t, err, cause)

	var ce *CatalogError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, MsgCatalogNetwork, ce.UserMessage())
	assert.Empty(t, c.Catalog().Brands)
}

func TestLoadOptionsCancel(t *testing.T) {
	b := &blockingPredictor{started: make(chan struct{})}
	c := NewController(b, WithClock(fixedClock))
	task := c.LoadOptions(context.Background())
	<-b.started
	task.Cancel()
	assert.ErrorIs(t, task.Wait(), context.Canceled)
	assert.Empty(t, c.Catalog().Brands)
	assert.NoError(t, c.CatalogError())
	assert.False(t, c.CatalogLoaded())
}

func TestLoadOptionsReturnsPendingTask(t *testing.T) {
	b := &blockingPredictor{started: make(chan struct{})}
	c := NewController(b, WithClock(fixedClock))
	first := c.LoadOptions(context.Background())
	second := c.LoadOptions(context.Background())
	assert.Same(t, first, second)
	c.Close()
	assert.ErrorIs(t, first.Wait(), context.Canceled)
}

func TestCloseStopsLaterLoads(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{Success: true, Brands: []string{"BMW"}}}
	c := NewController(m, WithClock(fixedClock))
	c.Close()
	assert.ErrorIs(t, c.LoadOptions(context.Background()).Wait(), context.Canceled)
	assert.Equal(t, 0, m.CatalogFetches())
}

func TestUpdateFieldNumbers(t *testing.T) {
	c := NewController(&prediction.MockPredictor{}, WithClock(fixedClock))
	require.NoError(t, c.UpdateField(model.FieldYear, "2018"))
	require.NoError(t, c.UpdateField(model.FieldMileage, " 120000 "))
	require.NoError(t, c.UpdateField(model.FieldFiscalPower, "9.0"))
	q := c.Query()
	assert.Equal(t, 2018, q.Year)
	assert.Equal(t, 120000, q.Mileage)
	assert.Equal(t, 9, q.FiscalPower)

	require.NoError(t, c.UpdateField(model.FieldMileage, ""))
	assert.Equal(t, 0, c.Query().Mileage)
}

func TestUpdateFieldRejectsGarbage(t *testing.T) {
	c := NewController(&prediction.MockPredictor{}, WithClock(fixedClock))
	err := c.UpdateField(model.FieldYear, "deux mille")
	assert.ErrorIs(t, err, ErrNotANumber)
	assert.Equal(t, 2025, c.Query().Year)

	before := c.Query().Mileage
	for _, raw := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e19", "-1e19", "9223372036854775808"} {
		assert.ErrorIs(t, c.UpdateField(model.FieldMileage, raw), ErrNotANumber, raw)
		assert.Equal(t, before, c.Query().Mileage, raw)
	}

	assert.ErrorIs(t, c.UpdateField("couleur", "rouge"), ErrUnknownField)
}

func TestUpdateFieldCanonicalisesBrand(t *testing.T) {
	m := &prediction.MockPredictor{Catalog: prediction.CatalogResponse{
		Success: true,
		Brands:  []string{"Citroën", "Mercedes-Benz"},
	}}
	c := NewController(m, WithClock(fixedClock))
	require.NoError(t, c.LoadOptions(context.Background()).Wait())

	require.NoError(t, c.UpdateField(model.FieldBrand, "  CITROEN "))
	assert.Equal(t, "Citroën", c.Query().Brand)

	require.NoError(t, c.UpdateField(model.FieldBrand, "mercedes-benz"))
	assert.Equal(t, "Mercedes-Benz", c.Query().Brand)

	require.NoError(t, c.UpdateField(model.FieldBrand, "Lada"))
	assert.Equal(t, "Lada", c.Query().Brand)

	require.NoError(t, c.UpdateField(model.FieldEnergy, "electrique"))
	assert.Equal(t, "Electrique", c.Query().Energy)
}

func TestUpdateFieldFreeText(t *testing.T) {
	c := NewController(&prediction.MockPredictor{}, WithClock(fixedClock))
	require.NoError(t, c.UpdateField(model.FieldModel, "Série 3"))
	require.NoError(t, c.UpdateField(model.FieldTransmission, "Automatique"))
	q := c.Query()
	assert.Equal(t, "Série 3", q.Model)
	assert.Equal(t, "Automatique", q.Transmission)
}

func TestControllerValidate(t *testing.T) {
	c := NewController(&prediction.MockPredictor{}, WithClock(fixedClock))
	_, err := c.Validate()
	assert.ErrorIs(t, err, ErrMissingBrand)

	c.SetQuery(validQuery())
	q, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, "BMW", q.Brand)
}
