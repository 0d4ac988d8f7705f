package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/carprice/core/form"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
	"github.com/kilianp07/carprice/core/render"
)

// fieldFlags maps command line flags to form fields.
var fieldFlags = []struct {
	flag, field, usage string
}{
	{"brand", model.FieldBrand, "vehicle brand (defaults to the first catalog brand)"},
	{"model", model.FieldModel, "vehicle model"},
	{"year", model.FieldYear, "manufacturing year"},
	{"mileage", model.FieldMileage, "mileage in km"},
	{"energy", model.FieldEnergy, "energy type"},
	{"transmission", model.FieldTransmission, "gearbox type"},
	{"fiscal-power", model.FieldFiscalPower, "fiscal power in CV"},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate the price of one vehicle",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

func init() {
	for _, f := range fieldFlags {
		predictCmd.Flags().String(f.flag, "", f.usage)
	}
	rootCmd.AddCommand(predictCmd)
}

// applyFlags copies every flag set on the command line into the form.
func applyFlags(cmd *cobra.Command, c *form.Controller) error {
	for _, f := range fieldFlags {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		v, err := cmd.Flags().GetString(f.flag)
		if err != nil {
			return err
		}
		if err := c.UpdateField(f.field, v); err != nil {
			return err
		}
	}
	return nil
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	// The form stays usable with its defaults when the catalog is unavailable.
	_ = <-svc.Start(ctx)
	if err := applyFlags(cmd, svc.Form()); err != nil {
		return err
	}

	st, err := svc.Submit(ctx)
	if werr := render.Default.Write(cmd.OutOrStdout(), st); werr != nil {
		return werr
	}
	if err != nil || st.Phase == prediction.Failed {
		return errFailed
	}
	return nil
}
