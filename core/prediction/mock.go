package prediction

import (
	"context"
	"sync"

	"github.com/kilianp07/carprice/core/model"
)

// MockPredictor returns canned catalog and prediction answers. It is used by
// tests and by the CLI when no predictor URL is configured.
type MockPredictor struct {
	Catalog    CatalogResponse
	CatalogErr error
	Answer     Response
	AnswerErr  error
	// PredictFunc, when set, overrides Answer/AnswerErr.
	PredictFunc func(ctx context.Context, q model.VehicleQuery) (Response, error)

	mu      sync.Mutex
	queries []model.VehicleQuery
	fetches int
}

// FetchCatalog returns the configured catalog or error.
func (m *MockPredictor) FetchCatalog(ctx context.Context) (CatalogResponse, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return CatalogResponse{}, &TransportError{Err: err}
	}
	return m.Catalog, m.CatalogErr
}

// Predict records the query and returns the configured answer.
func (m *MockPredictor) Predict(ctx context.Context, q model.VehicleQuery) (Response, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	fn := m.PredictFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return m.Answer, m.AnswerErr
}

// PredictBatch answers each query with Predict.
func (m *MockPredictor) PredictBatch(ctx context.Context, qs []model.VehicleQuery) (BatchResponse, error) {
	out := BatchResponse{Success: true, Results: make([]Response, 0, len(qs))}
	for _, q := range qs {
		resp, err := m.Predict(ctx, q)
		if err != nil {
			return BatchResponse{}, err
		}
		out.Results = append(out.Results, resp)
	}
	return out, nil
}

// Calls returns a copy of the queries received by Predict.
func (m *MockPredictor) Calls() []model.VehicleQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.VehicleQuery, len(m.queries))
	copy(cp, m.queries)
	return cp
}

// CatalogFetches returns how many times FetchCatalog was called.
func (m *MockPredictor) CatalogFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}
