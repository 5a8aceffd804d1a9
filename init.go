package main

import (
	"context"
	"errors"

	"github.com/tournevent/ratebridge/internal/config"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/oauth"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/ups"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(level, output string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level, output)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger) (*shipper.Registry, error) {
	// Delegates to the provider installed by initTracer, or no-op when tracing is off.
	tracer := otel.Tracer(cfg.ServiceName)

	var carriers []shipper.Carrier

	if cfg.UPSEnabled {
		doer := transport.NewHTTP(transport.HTTPConfig{
			Timeout:           cfg.UPSTimeout,
			RequestsPerSecond: cfg.UPSRequestsPerSecond,
			Burst:             cfg.UPSBurst,
		})

		tokens := oauth.New(oauth.Config{
			Carrier:      "ups",
			TokenURL:     cfg.UPSTokenURL,
			ClientID:     cfg.UPSClientID,
			ClientSecret: cfg.UPSClientSecret,
			Scope:        cfg.UPSScope,
			Timeout:      cfg.UPSTimeout,
		}, doer, logger)

		carriers = append(carriers, ups.New(ups.Config{
			AccountNumber:  cfg.UPSAccountNumber,
			BaseURL:        cfg.UPSBaseURL,
			TransactionSrc: cfg.UPSTransactionSrc,
			Timeout:        cfg.UPSTimeout,
			UseMock:        cfg.UPSUseMock,
		}, tokens, doer, logger, tracer))
	}

	if len(carriers) == 0 {
		return nil, errors.New("no carriers enabled")
	}
	return shipper.NewRegistry(logger, carriers...)
}
