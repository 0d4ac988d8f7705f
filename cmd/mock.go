package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carprice/infra/logger"
	"github.com/kilianp07/carprice/infra/metrics"
	"github.com/kilianp07/carprice/mockserver"
)

var (
	mockAddr    string
	mockLatency time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a local predictor speaking the prediction API",
	Args:  cobra.NoArgs,
	RunE:  runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", "", "listen address (overrides mock.address)")
	mockCmd.Flags().DurationVar(&mockLatency, "latency", 0, "artificial delay per API call (overrides mock.latency)")
	rootCmd.AddCommand(mockCmd)
}

func runMock(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mockAddr != "" {
		cfg.Mock.Address = mockAddr
	}
	if cmd.Flags().Changed("latency") {
		cfg.Mock.Latency = mockLatency
	}
	if err := logger.Configure(cfg.Logging.LoggerOptions()); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Close()

	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				logger.New("mock").Errorf("prom server: %v", err)
			}
		}()
	}
	srv := mockserver.NewServer(cfg.Mock)
	if err := srv.Start(ctx, nil); err != nil {
		return fmt.Errorf("mock predictor: %w", err)
	}
	return nil
}
