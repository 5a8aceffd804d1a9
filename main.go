package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tournevent/ratebridge/internal/server"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ratebridge",
	Short:   "Rate bridge - normalized shipping quotes from carrier APIs",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch quotes for a JSON rate request and print them",
	RunE:  runQuote,
}

var (
	quoteFile    string
	quoteCarrier string
)

func init() {
	quoteCmd.Flags().StringVarP(&quoteFile, "file", "f", "", `path to a JSON rate request ("-" for stdin)`)
	quoteCmd.Flags().StringVarP(&quoteCarrier, "carrier", "c", "", "query a single carrier instead of all")
	_ = quoteCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd, quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg.LogLevel, "stdout")
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.WithoutCancel(ctx))
	}

	// Initialize shipper registry with all enabled carriers
	registry, err := initShipperRegistry(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting rate bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", registry.Names()),
	)

	// Start HTTP server
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(server.Config{Port: cfg.Port}, registry, logger, reg)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout carries only the quotes.
	logger, err := initLogger(cfg.LogLevel, "stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := initShipperRegistry(cfg, logger)
	if err != nil {
		return err
	}

	req, err := readRateRequest(cmd.InOrStdin(), quoteFile)
	if err != nil {
		return err
	}

	var quotes []shipper.RateQuote
	if quoteCarrier != "" {
		quotes, err = registry.GetRatesFromCarrier(ctx, quoteCarrier, req)
	} else {
		quotes, err = registry.GetRates(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(server.RatesResponse{Quotes: server.QuotesToOutput(quotes)})
}

func readRateRequest(stdin io.Reader, path string) (*shipper.RateRequest, error) {
	if path == "-" {
		return server.DecodeRateRequest(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rate request: %w", err)
	}
	defer f.Close()

	return server.DecodeRateRequest(f)
}
