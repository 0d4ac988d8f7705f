// Package mockserver serves a local stand-in for the price predictor. It
// speaks the same JSON contract as the real service so the client can be
// exercised without the trained model.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/carprice/config"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/infra/logger"
)

const notInitialized = "Predictor not initialized"

// Server is the mock predictor.
type Server struct {
	addr    string
	latency time.Duration
	pricer  Pricer
	log     logger.Logger
	srv     *http.Server
	ready   atomic.Bool

	requests    *prometheus.CounterVec
	predictions *prometheus.CounterVec
}

// NewServer creates a server using the default Prometheus registerer.
func NewServer(cfg config.MockConfig) *Server {
	return NewServerWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewServerWithRegistry creates a server and registers its metrics on reg.
// If reg is nil the default registerer is used.
func NewServerWithRegistry(cfg config.MockConfig, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	log := logger.New("mock-predictor")

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carprice_mock_requests_total",
		Help: "Requests served by the mock predictor",
	}, []string{"route", "status"})
	predictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carprice_mock_predictions_total",
		Help: "Vehicles priced by the mock predictor by result",
	}, []string{"result"})

	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				requests = exist
			} else {
				log.Errorf("existing collector for carprice_mock_requests_total has wrong type %T", are.ExistingCollector)
			}
		}
	}
	if err := reg.Register(predictions); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				predictions = exist
			} else {
				log.Errorf("existing collector for carprice_mock_predictions_total has wrong type %T", are.ExistingCollector)
			}
		}
	}

	s := &Server{
		addr:        cfg.Address,
		latency:     cfg.Latency,
		log:         log,
		requests:    requests,
		predictions: predictions,
	}
	s.ready.Store(true)
	return s
}

// SetClock fixes the clock used to compute ages and reject future years.
func (s *Server) SetClock(now func() time.Time) { s.pricer.Now = now }

// SetReady toggles the simulated model. An unready server answers 500 on
// every endpoint, like a service that failed to load its model.
func (s *Server) SetReady(ok bool) { s.ready.Store(ok) }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.delay)
		r.Get("/brands", s.handleBrands)
		r.Post("/predict", s.handlePredict)
		r.Post("/predict_batch", s.handlePredictBatch)
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.log.Debugw("request", map[string]any{
			"method":     r.Method,
			"route":      route,
			"status":     ww.Status(),
			"request_id": middleware.GetReqID(r.Context()),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			t := time.NewTimer(s.latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type prediction struct {
	Success bool `json:"success"`
	model.PredictionResult
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"healthy": false, "error": notInitialized})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"healthy": true})
}

func (s *Server) handleBrands(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusInternalServerError, failure{Error: notInitialized})
		return
	}
	cat := Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"marques":          cat.Brands,
		"luxury_brands":    cat.LuxuryBrands,
		"brand_categories": cat.BrandCategories,
		"energies":         cat.Energies,
		"boites":           cat.Transmissions,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusInternalServerError, failure{Error: notInitialized})
		return
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusInternalServerError, failure{Error: err.Error()})
		return
	}
	if missing := missingFields(raw); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, failure{Error: fmt.Sprintf("Missing fields: %v", missing)})
		return
	}
	q, km, err := decodeVehicle(raw)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failure{Error: err.Error()})
		return
	}
	res, err := s.pricer.Price(q, km)
	if err != nil {
		s.predictions.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, failure{Error: err.Error()})
		return
	}
	s.predictions.WithLabelValues("priced").Inc()
	s.log.Infof("priced %s at %.0f DT", q, res.PredictedPrice)
	writeJSON(w, http.StatusOK, prediction{Success: true, PredictionResult: res})
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusInternalServerError, failure{Error: notInitialized})
		return
	}
	var body struct {
		Vehicles json.RawMessage `json:"vehicles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusInternalServerError, failure{Error: err.Error()})
		return
	}
	var vehicles []map[string]json.RawMessage
	if len(body.Vehicles) == 0 || json.Unmarshal(body.Vehicles, &vehicles) != nil || vehicles == nil {
		writeJSON(w, http.StatusBadRequest, failure{Error: `Field "vehicles" must be a list`})
		return
	}
	results := make([]any, 0, len(vehicles))
	for _, raw := range vehicles {
		if missing := missingFields(raw); len(missing) > 0 {
			results = append(results, failure{Error: fmt.Sprintf("Missing fields: %v", missing)})
			continue
		}
		q, km, err := decodeVehicle(raw)
		if err != nil {
			results = append(results, failure{Error: err.Error()})
			continue
		}
		res, err := s.pricer.Price(q, km)
		if err != nil {
			s.predictions.WithLabelValues("rejected").Inc()
			results = append(results, failure{Error: err.Error()})
			continue
		}
		s.predictions.WithLabelValues("priced").Inc()
		results = append(results, prediction{Success: true, PredictionResult: res})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func missingFields(raw map[string]json.RawMessage) []string {
	var missing []string
	for _, f := range model.Fields {
		if _, ok := raw[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// decodeVehicle converts the raw payload, accepting numbers sent as strings.
// Mileage is returned separately as it may carry decimals.
func decodeVehicle(raw map[string]json.RawMessage) (model.VehicleQuery, float64, error) {
	var q model.VehicleQuery
	var err error
	if q.Brand, err = decodeString(raw, model.FieldBrand); err != nil {
		return q, 0, err
	}
	if q.Model, err = decodeString(raw, model.FieldModel); err != nil {
		return q, 0, err
	}
	if q.Energy, err = decodeString(raw, model.FieldEnergy); err != nil {
		return q, 0, err
	}
	if q.Transmission, err = decodeString(raw, model.FieldTransmission); err != nil {
		return q, 0, err
	}
	year, err := decodeNumber(raw, model.FieldYear)
	if err != nil {
		return q, 0, err
	}
	km, err := decodeNumber(raw, model.FieldMileage)
	if err != nil {
		return q, 0, err
	}
	cv, err := decodeNumber(raw, model.FieldFiscalPower)
	if err != nil {
		return q, 0, err
	}
	q.Year, q.Mileage, q.FiscalPower = int(year), int(km), int(cv)
	return q, km, nil
}

func decodeString(raw map[string]json.RawMessage, field string) (string, error) {
	v, ok := raw[field]
	if !ok || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%s: expected a string", field)
	}
	return s, nil
}

func decodeNumber(raw map[string]json.RawMessage, field string) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw[field], &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw[field], &s); err != nil {
		return 0, fmt.Errorf("%s: expected a number", field)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid literal for %s: '%s'", field, s)
	}
	return f, nil
}

// Addr returns the listening address once Start has been called.
func (s *Server) Addr() string { return s.addr }

// Start runs the HTTP server until the context is canceled. If ready is not
// nil it receives the bound address once the listener is open.
func (s *Server) Start(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("mock predictor listening on %s", s.addr)
	if ready != nil {
		ready <- s.addr
	}
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
