package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	maxBodyBytes = 1 << 20

	operationGetRates            = "get_rates"
	operationGetRatesFromCarrier = "get_rates_from_carrier"
	allCarriers                  = "all"
)

// RateService is the quoting surface the server exposes.
type RateService interface {
	Names() []string
	GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error)
	GetRatesFromCarrier(ctx context.Context, name string, req *shipper.RateRequest) ([]shipper.RateQuote, error)
}

// Server is the HTTP server for the rate bridge.
type Server struct {
	port            int
	shutdownTimeout time.Duration
	rates           RateService
	logger          *otelzap.Logger
	metrics         *telemetry.Metrics
	handler         http.Handler
}

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// New creates a new server instance. Metrics are registered with reg, which
// also backs /metrics.
func New(cfg Config, rates RateService, logger *otelzap.Logger, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}

	s := &Server{
		port:            cfg.Port,
		shutdownTimeout: shutdownTimeout,
		rates:           rates,
		logger:          logger,
		metrics:         telemetry.NewMetrics(reg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /v1/rates", s.handleRates)
	mux.HandleFunc("POST /v1/rates/{carrier}", s.handleCarrierRates)
	s.handler = mux

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"carriers": s.rates.Names(),
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	s.serveRates(w, r, operationGetRates, allCarriers, s.rates.GetRates)
}

func (s *Server) handleCarrierRates(w http.ResponseWriter, r *http.Request) {
	carrier := r.PathValue("carrier")
	s.serveRates(w, r, operationGetRatesFromCarrier, carrier,
		func(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error) {
			return s.rates.GetRatesFromCarrier(ctx, carrier, req)
		})
}

type rateFunc func(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error)

func (s *Server) serveRates(w http.ResponseWriter, r *http.Request, operation, carrier string, getRates rateFunc) {
	ctx := r.Context()
	start := time.Now()

	quotes, err := func() ([]shipper.RateQuote, error) {
		req, err := DecodeRateRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		return getRates(ctx, req)
	}()

	if err != nil {
		s.metrics.RecordRequest(operation, carrier, telemetry.StatusError, time.Since(start))
		s.writeError(ctx, w, operation, carrier, err)
		return
	}

	s.metrics.RecordRequest(operation, carrier, telemetry.StatusSuccess, time.Since(start))
	s.logger.Ctx(ctx).Info("Rates returned",
		zap.String("operation", operation),
		zap.String("carrier", carrier),
		zap.Int("quote_count", len(quotes)),
	)
	writeJSON(w, http.StatusOK, RatesResponse{Quotes: QuotesToOutput(quotes)})
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, operation, carrier string, err error) {
	status, kind := http.StatusInternalServerError, "INTERNAL"
	message := err.Error()
	if carrierErr, ok := shipper.AsCarrierError(err); ok {
		kind = string(carrierErr.Kind)
		status = statusForKind(carrierErr.Kind)
		message = carrierErr.Message
		if s.isRegistered(carrierErr.Carrier) {
			s.metrics.RecordError(carrierErr.Carrier, kind)
		}
	}

	s.logger.Ctx(ctx).Warn("Rate request failed",
		zap.String("operation", operation),
		zap.String("carrier", carrier),
		zap.String("error_kind", kind),
		zap.Error(err),
	)
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Kind: kind, Message: message}})
}

func (s *Server) isRegistered(carrier string) bool {
	for _, name := range s.rates.Names() {
		if strings.EqualFold(name, carrier) {
			return true
		}
	}
	return false
}

func statusForKind(kind shipper.ErrorKind) int {
	switch kind {
	case shipper.KindInvalidRequest:
		return http.StatusBadRequest
	case shipper.KindRateLimited:
		return http.StatusTooManyRequests
	case shipper.KindCarrierUnavailable:
		return http.StatusServiceUnavailable
	case shipper.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
