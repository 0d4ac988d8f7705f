package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carprice/config"
	"github.com/kilianp07/carprice/core/model"
	coreprediction "github.com/kilianp07/carprice/core/prediction"
	"github.com/kilianp07/carprice/infra/api"
)

var refNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServerWithRegistry(config.MockConfig{}, prometheus.NewRegistry())
	s.SetClock(func() time.Time { return refNow })
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func bmwPayload() map[string]any {
	return map[string]any{
		"marque": "BMW", "modele": "Série 3", "annee": 2020, "kilometrage": 50000,
		"energie": "Diesel", "boite_vitesses": "Manuelle", "puissance_fiscale": 7,
	}
}

func TestBrands(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/brands")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out coreprediction.CatalogResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Len(t, out.Brands, 30)
	assert.Equal(t, "MERCEDES", out.Brands[0])
	assert.Equal(t, model.DefaultEnergies(), out.Energies)
	assert.Equal(t, model.DefaultTransmissions(), out.Transmissions)
	assert.Contains(t, out.LuxuryBrands, "Porsche")
	assert.Contains(t, out.BrandCategories["Chinese"], "MG")
}

func TestPredict(t *testing.T) {
	_, ts := newTestServer(t)
	resp, out := post(t, ts.URL+"/api/predict", bmwPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 5, out["age"])
	assert.EqualValues(t, 50000, out["kilometrage"])
	assert.Equal(t, "Série 3", out["modele"])

	price := out["prix_predit"].(float64)
	assert.InDelta(t, price*0.9, out["prix_min"].(float64), 1e-6)
	assert.InDelta(t, price*1.1, out["prix_max"].(float64), 1e-6)
}

func TestPredictMissingFields(t *testing.T) {
	_, ts := newTestServer(t)
	body := bmwPayload()
	delete(body, "modele")
	delete(body, "puissance_fiscale")
	resp, out := post(t, ts.URL+"/api/predict", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Missing fields: [modele puissance_fiscale]", out["error"])
}

func TestPredictRejections(t *testing.T) {
	_, ts := newTestServer(t)
	cases := map[string]struct {
		field string
		value any
		want  string
	}{
		"brand":   {"marque", "Lada", "Marque 'Lada' non reconnue"},
		"energy":  {"energie", "Vapeur", "Énergie 'Vapeur' non reconnue"},
		"gearbox": {"boite_vitesses", "Robotisée", "Boîte 'Robotisée' non reconnue"},
		"future":  {"annee", 2031, "L'année 2031 est dans le futur!"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := bmwPayload()
			body[tc.field] = tc.value
			resp, out := post(t, ts.URL+"/api/predict", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, out["success"])
			assert.True(t, strings.HasPrefix(out["error"].(string), tc.want), out["error"])
		})
	}
}

func TestPredictAcceptsNumericStrings(t *testing.T) {
	_, ts := newTestServer(t)
	body := bmwPayload()
	body["annee"] = "2020"
	body["kilometrage"] = "50000.5"
	resp, out := post(t, ts.URL+"/api/predict", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 50000.5, out["kilometrage"])

	body["annee"] = "vingt"
	resp, _ = post(t, ts.URL+"/api/predict", body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPricingOrdersVehicles(t *testing.T) {
	p := Pricer{Now: func() time.Time { return refNow }}
	q := model.VehicleQuery{Brand: "BMW", Year: 2020, Energy: "Diesel", Transmission: "Manuelle", FiscalPower: 7}
	recent, err := p.Price(q, 50000)
	require.NoError(t, err)

	q.Year = 2010
	old, err := p.Price(q, 50000)
	require.NoError(t, err)
	assert.Less(t, old.PredictedPrice, recent.PredictedPrice)

	q.Year = 2020
	worn, err := p.Price(q, 250000)
	require.NoError(t, err)
	assert.Less(t, worn.PredictedPrice, recent.PredictedPrice)

	q.Brand = "Dacia"
	cheap, err := p.Price(q, 50000)
	require.NoError(t, err)
	assert.Less(t, cheap.PredictedPrice, recent.PredictedPrice)
	assert.NoError(t, cheap.Validate())
}

func TestPredictBatch(t *testing.T) {
	s, ts := newTestServer(t)
	lada := bmwPayload()
	lada["marque"] = "Lada"
	resp, out := post(t, ts.URL+"/api/predict_batch", map[string]any{"vehicles": []any{bmwPayload(), lada}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := out["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]any)["success"])
	assert.Equal(t, false, results[1].(map[string]any)["success"])

	assert.Equal(t, 1.0, testutil.ToFloat64(s.predictions.WithLabelValues("priced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.predictions.WithLabelValues("rejected")))

	resp, out = post(t, ts.URL+"/api/predict_batch", map[string]any{"vehicles": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `Field "vehicles" must be a list`, out["error"])
}

func TestNotReady(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetReady(false)

	c := api.NewClient(ts.URL)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.Equal(t, notInitialized, h.Error)

	_, err = c.FetchCatalog(context.Background())
	assert.Equal(t, notInitialized, coreprediction.DisplayMessage(err))
}

func TestClientRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	c := api.NewClient(ts.URL)

	q := model.VehicleQuery{Brand: "Toyota", Model: "Yaris", Year: 2019, Mileage: 80000, Energy: "Hybride", Transmission: "Automatique", FiscalPower: 5}
	resp, err := c.Predict(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 6, resp.Age)
	assert.Equal(t, "Hybride", resp.Energy)

	q.Brand = "Lada"
	_, err = c.Predict(context.Background(), q)
	assert.Contains(t, coreprediction.DisplayMessage(err), "Marque 'Lada' non reconnue")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("/api/predict", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("/api/predict", "400")))
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServerWithRegistry(config.MockConfig{Address: "127.0.0.1:0"}, prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx, ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errc)
}
