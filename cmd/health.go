package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the predictor is up and its model loaded",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	h, err := svc.Health(ctx)
	if err != nil {
		return err
	}
	if !h.Healthy {
		return fmt.Errorf("predictor at %s unhealthy: %s", svc.Client().BaseURL(), h.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "predictor at %s healthy\n", svc.Client().BaseURL())
	return nil
}
