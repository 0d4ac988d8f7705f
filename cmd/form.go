package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carprice/core/form"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/render"
)

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Fill the vehicle form interactively and estimate its price",
	Args:  cobra.NoArgs,
	RunE:  runForm,
}

func init() {
	rootCmd.AddCommand(formCmd)
}

var fieldLabels = map[string]string{
	model.FieldBrand:        "Marque",
	model.FieldModel:        "Modèle",
	model.FieldYear:         "Année",
	model.FieldMileage:      "Kilométrage",
	model.FieldEnergy:       "Énergie",
	model.FieldTransmission: "Boîte de vitesses",
	model.FieldFiscalPower:  "Puissance fiscale",
}

func runForm(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	out := cmd.OutOrStdout()
	if err := <-svc.Start(ctx); err != nil {
		_ = render.Default.Write(out, svc.Renderer().State())
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		if err := prompt(in, out, svc.Form()); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, render.SubmittingLabel)
		st, _ := svc.Submit(ctx)
		if err := render.Default.Write(out, st); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "\nNouvelle estimation ? [o/N] ")
		if !in.Scan() || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(in.Text())), "o") {
			return nil
		}
	}
}

// prompt asks for every field in form order. An empty answer keeps the
// current value. It returns io.EOF when input ends.
func prompt(in *bufio.Scanner, out io.Writer, c *form.Controller) error {
	cat := c.Catalog()
	for _, name := range model.Fields {
		for {
			fmt.Fprintf(out, "%s%s [%s]: ", fieldLabels[name], choices(name, cat), current(c.Query(), name))
			if !in.Scan() {
				if err := in.Err(); err != nil {
					return err
				}
				return io.EOF
			}
			v := strings.TrimSpace(in.Text())
			if v == "" {
				break
			}
			err := c.UpdateField(name, v)
			if errors.Is(err, form.ErrNotANumber) {
				fmt.Fprintln(out, "Veuillez saisir un nombre.")
				continue
			}
			if err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func choices(name string, cat model.OptionCatalog) string {
	var opts []string
	switch name {
	case model.FieldBrand:
		opts = cat.Brands
	case model.FieldEnergy:
		opts = cat.Energies
	case model.FieldTransmission:
		opts = cat.Transmissions
	}
	if len(opts) == 0 {
		return ""
	}
	return " (" + strings.Join(opts, ", ") + ")"
}

func current(q model.VehicleQuery, name string) string {
	switch name {
	case model.FieldBrand:
		return q.Brand
	case model.FieldModel:
		return q.Model
	case model.FieldYear:
		return strconv.Itoa(q.Year)
	case model.FieldMileage:
		return strconv.Itoa(q.Mileage)
	case model.FieldEnergy:
		return q.Energy
	case model.FieldTransmission:
		return q.Transmission
	case model.FieldFiscalPower:
		return strconv.Itoa(q.FiscalPower)
	}
	return ""
}
