package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/carprice/core/model"
)

var brandsOutput string

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "List the brands, energies and gearboxes offered by the predictor",
	Args:  cobra.NoArgs,
	RunE:  runBrands,
}

func init() {
	brandsCmd.Flags().StringVarP(&brandsOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(brandsCmd)
}

// catalogDoc is the json/yaml shape of the catalog listing.
type catalogDoc struct {
	Brands        []brandDoc `json:"brands" yaml:"brands"`
	Energies      []string   `json:"energies" yaml:"energies"`
	Transmissions []string   `json:"transmissions" yaml:"transmissions"`
}

type brandDoc struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Luxury   bool   `json:"luxury" yaml:"luxury"`
}

func newCatalogDoc(cat model.OptionCatalog) catalogDoc {
	doc := catalogDoc{Energies: cat.Energies, Transmissions: cat.Transmissions}
	for _, b := range cat.Brands {
		doc.Brands = append(doc.Brands, brandDoc{Name: b, Category: cat.CategoryOf(b), Luxury: cat.IsLuxury(b)})
	}
	return doc
}

func runBrands(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	if err := <-svc.Start(ctx); err != nil {
		return err
	}
	return writeCatalog(cmd.OutOrStdout(), svc.Form().Catalog(), brandsOutput)
}

func writeCatalog(w io.Writer, cat model.OptionCatalog, format string) error {
	doc := newCatalogDoc(cat)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MARQUE\tCATÉGORIE\tLUXE")
	for _, b := range doc.Brands {
		lux := ""
		if b.Luxury {
			lux = "oui"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.Category, lux)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nÉnergies: %s\n", strings.Join(cat.Energies, ", "))
	_, err := fmt.Fprintf(w, "Boîtes: %s\n", strings.Join(cat.Transmissions, ", "))
	return err
}
