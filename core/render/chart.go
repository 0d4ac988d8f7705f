package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/carprice/core/batch"
)

// BatchChart writes an HTML bar chart of the priced vehicles of rep, with
// the low and high ends of each range next to the estimate. Vehicles without
// a price are left out.
func BatchChart(w io.Writer, rep batch.Report) error {
	var labels []string
	var low, mid, high []opts.BarData
	for _, it := range rep.Items {
		if !it.OK() {
			continue
		}
		label := fmt.Sprintf("#%d %s", it.Index+1, it.Query.Brand)
		if it.Query.Model != "" {
			label += " " + it.Query.Model
		}
		labels = append(labels, label)
		low = append(low, opts.BarData{Value: it.Result.PriceMin})
		mid = append(mid, opts.BarData{Value: it.Result.PredictedPrice})
		high = append(high, opts.BarData{Value: it.Result.PriceMax})
	}
	if len(labels) == 0 {
		return fmt.Errorf("chart: no priced vehicle")
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Estimations",
			Subtitle: fmt.Sprintf("%d/%d véhicules, moyenne %s", rep.Summary.Succeeded, rep.Summary.Count, Price(rep.Summary.Mean)),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: Currency}),
	)
	bar.SetXAxis(labels).
		AddSeries("Min", low).
		AddSeries("Estimation", mid).
		AddSeries("Max", high)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	return nil
}
