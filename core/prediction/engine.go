package prediction

import (
	"context"

	"github.com/kilianp07/carprice/core/model"
)

// Predictor is the remote price prediction service.
type Predictor interface {
	// FetchCatalog reads the option catalog (brands, energies, gearboxes).
	FetchCatalog(ctx context.Context) (CatalogResponse, error)

	// Predict requests a price for a single vehicle. A non-nil error means
	// the request did not produce a usable 2xx answer.
	Predict(ctx context.Context, q model.VehicleQuery) (Response, error)
}

// BatchPredictor prices several vehicles in one request.
type BatchPredictor interface {
	PredictBatch(ctx context.Context, qs []model.VehicleQuery) (BatchResponse, error)
}

// HealthChecker reports whether the predictor is ready to serve.
type HealthChecker interface {
	Health(ctx context.Context) (Health, error)
}

// Response is the payload of a prediction request. On failure only Success
// and Error are set.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	model.PredictionResult
}

// CatalogResponse is the payload of the option catalog endpoint.
type CatalogResponse struct {
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	Brands          []string            `json:"marques,omitempty"`
	Energies        []string            `json:"energies,omitempty"`
	Transmissions   []string            `json:"boites,omitempty"`
	LuxuryBrands    []string            `json:"luxury_brands,omitempty"`
	BrandCategories map[string][]string `json:"brand_categories,omitempty"`
}

// BatchResponse is the payload of the batch prediction endpoint. Results are
// in request order; each carries its own success flag.
type BatchResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	Results []Response `json:"results,omitempty"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request identifier that transports forward
// to the predictor.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the identifier set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
