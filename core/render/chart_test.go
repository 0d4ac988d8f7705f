package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carprice/core/batch"
	"github.com/kilianp07/carprice/core/model"
)

func TestBatchChart(t *testing.T) {
	items := []batch.Item{
		{Index: 0, Query: model.VehicleQuery{Brand: "BMW"}, Result: &model.PredictionResult{PredictedPrice: 45000, PriceMin: 42000, PriceMax: 48000}},
		{Index: 1, Query: model.VehicleQuery{Brand: "Kia"}, Message: "Erreur réseau"},
		{Index: 2, Query: model.VehicleQuery{Brand: "Fiat", Model: "Tipo"}, Result: &model.PredictionResult{PredictedPrice: 30000, PriceMin: 27000, PriceMax: 33000}},
	}
	rep := batch.Report{Items: items, Summary: batch.Summarize(items)}

	var buf bytes.Buffer
	require.NoError(t, BatchChart(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "#1 BMW")
	assert.Contains(t, out, "#3 Fiat Tipo")
	assert.NotContains(t, out, "Kia")
	assert.Contains(t, out, "Estimation")
}

func TestBatchChartNothingPriced(t *testing.T) {
	items := []batch.Item{{Index: 0, Message: "Erreur réseau"}}
	err := BatchChart(&bytes.Buffer{}, batch.Report{Items: items, Summary: batch.Summarize(items)})
	assert.Error(t, err)
}
