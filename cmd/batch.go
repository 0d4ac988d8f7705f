package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carprice/core/batch"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/render"
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Estimate the prices of the vehicles listed in a JSON file",
	Long: `Estimate the prices of the vehicles listed in a JSON file. The file holds
either an array of vehicles or an object {"vehicles": [...]}, each vehicle
using the prediction API field names. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var chartPath string

// timeNow is replaced in tests.
var timeNow = time.Now

func init() {
	batchCmd.Flags().StringVar(&chartPath, "chart", "", "also write an HTML bar chart of the prices to this file")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	var raw []byte
	var err error
	if args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read vehicles: %w", err)
	}
	qs, err := readVehicles(raw)
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	rep, err := svc.Batch(ctx, qs)
	if err != nil {
		return err
	}
	if err := writeReport(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if chartPath != "" && rep.Summary.Succeeded > 0 {
		if err := writeChart(chartPath, rep); err != nil {
			return err
		}
	}
	if rep.Summary.Failed > 0 {
		return errFailed
	}
	return nil
}

// readVehicles accepts a bare array or a {"vehicles": [...]} document.
// Missing fields take the form defaults.
func readVehicles(raw []byte) ([]model.VehicleQuery, error) {
	raw = bytes.TrimSpace(raw)
	var items []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode vehicles: %w", err)
		}
	} else {
		var doc struct {
			Vehicles []json.RawMessage `json:"vehicles"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode vehicles: %w", err)
		}
		items = doc.Vehicles
	}
	if len(items) == 0 {
		return nil, batch.ErrEmpty
	}
	qs := make([]model.VehicleQuery, len(items))
	for i, item := range items {
		qs[i] = model.DefaultQuery(timeNow())
		if err := json.Unmarshal(item, &qs[i]); err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
	}
	return qs, nil
}

func writeReport(w io.Writer, rep batch.Report) error {
	f := render.Default
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVÉHICULE\tPRIX\tFOURCHETTE")
	for _, it := range rep.Items {
		if it.OK() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Index+1, it.Query, f.Price(it.Result.PredictedPrice),
				f.Range(it.Result.PriceMin, it.Result.PriceMax))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t-\t%s\n", it.Index+1, it.Query, it.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := rep.Summary
	fmt.Fprintf(w, "\n%d/%d estimés en %s\n", s.Succeeded, s.Count, rep.Latency.Round(time.Millisecond))
	if s.Succeeded == 0 {
		return nil
	}
	fmt.Fprintf(w, "Moyenne: %s  Médiane: %s  Écart-type: %s\n", f.Price(s.Mean), f.Price(s.Median), f.Price(s.StdDev))
	_, err := fmt.Fprintf(w, "Min: %s  Max: %s\n", f.Price(s.Min), f.Price(s.Max))
	return err
}

func writeChart(path string, rep batch.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	if err := render.BatchChart(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
