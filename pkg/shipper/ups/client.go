// Package ups provides integration with the UPS Rating API.
package ups

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	carrierName           = "ups"
	defaultTransactionSrc = "ratebridge"

	unknownServiceCode = "UNKNOWN"
	unknownServiceName = "Unknown Service"
	defaultCurrency    = "USD"
)

// Config holds UPS configuration.
type Config struct {
	AccountNumber  string // Sent as ShipperNumber when set
	BaseURL        string
	TransactionSrc string
	Timeout        time.Duration
	UseMock        bool // When true, uses mock API client
}

// Client is the UPS carrier adapter.
// It implements the shipper.Carrier interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source used for transit days and quote ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new UPS client.
// If cfg.UseMock is true, tokens and doer are unused and a mock API client serves fixtures.
func New(cfg Config, tokens TokenSource, doer transport.Doer, logger *otelzap.Logger, tracer trace.Tracer, opts ...Option) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:        cfg.BaseURL,
			TransactionSrc: cfg.TransactionSrc,
			Timeout:        cfg.Timeout,
		}, tokens, doer, logger)
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer, opts...)
}

// NewWithAPIClient creates a new UPS client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer, opts ...Option) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierName)
	}

	c := &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// GetRates returns normalized quotes from UPS. The request must already be validated.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error) {
	ctx, span := c.tracer.Start(ctx, "ups.GetRates", trace.WithAttributes(
		attribute.String("carrier", carrierName),
		attribute.Int("package_count", len(req.Packages)),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting UPS rates",
		zap.String("origin_postal", req.Origin.PostalCode),
		zap.String("destination_postal", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	// Convert to API request
	apiReq := rateRequestToAPI(req, c.config.AccountNumber)

	// Call API
	apiResp, err := c.apiClient.Rate(ctx, apiReq)
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}

	// Convert to shipper quotes
	quotes, err := ratesResponseToQuotes(apiResp, c.now())
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int("quote_count", len(quotes)))
	return quotes, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, err error) error {
	kind := string(shipper.KindOf(err))
	c.logger.Ctx(ctx).Error("UPS API error",
		zap.String("error_kind", kind),
		zap.Error(err),
	)
	span.RecordError(err)
	span.SetAttributes(attribute.String("error_kind", kind))
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ============================================================================
// Conversion helpers
// ============================================================================

func rateRequestToAPI(req *shipper.RateRequest, accountNumber string) *RateRequestEnvelope {
	shipment := Shipment{
		Shipper: Shipper{
			ShipperNumber: accountNumber,
			Address:       addressToAPI(req.Origin),
		},
		ShipTo: ShipTo{
			Address: addressToAPI(req.Destination),
		},
		Package: packagesToAPI(req.Packages),
	}
	if req.ServiceLevel != "" {
		shipment.Service = &CodeOnly{Code: req.ServiceLevel}
	}

	return &RateRequestEnvelope{
		RateRequest: RateRequest{
			Request:  RequestOptions{RequestOption: "Rate"},
			Shipment: shipment,
		},
	}
}

func addressToAPI(addr shipper.Address) Address {
	var lines []string
	if len(addr.Lines) > 0 {
		lines = append(lines, addr.Lines...)
	}
	return Address{
		AddressLine:       lines,
		City:              addr.City,
		StateProvinceCode: addr.StateProvince,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.CountryCode,
	}
}

func packagesToAPI(pkgs []shipper.Package) []Package {
	result := make([]Package, len(pkgs))
	for i, pkg := range pkgs {
		p := Package{
			PackagingType: CodeOnly{Code: "02"}, // Customer supplied package
			PackageWeight: PackageWeight{
				UnitOfMeasurement: CodeOnly{Code: "LBS"},
				Weight:            formatDecimal(pkg.Weight),
			},
		}
		if pkg.Dimensions != nil {
			p.Dimensions = &Dimensions{
				UnitOfMeasurement: CodeOnly{Code: "IN"},
				Length:            formatDecimal(pkg.Dimensions.Length),
				Width:             formatDecimal(pkg.Dimensions.Width),
				Height:            formatDecimal(pkg.Dimensions.Height),
			}
		}
		result[i] = p
	}
	return result
}

func formatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func ratesResponseToQuotes(resp *RateResponseEnvelope, now time.Time) ([]shipper.RateQuote, error) {
	if resp == nil || resp.RateResponse == nil {
		return nil, shipper.NewCarrierError(carrierName, shipper.KindMalformedResponse,
			"rate response missing RateResponse")
	}
	rr := resp.RateResponse

	if code := responseStatusCode(rr); code != "1" {
		return nil, shipper.NewCarrierError(carrierName, shipper.KindInvalidRequest,
			"UPS rejected rate request: "+responseErrorDescription(rr))
	}

	quotes := make([]shipper.RateQuote, 0, len(rr.RatedShipment))
	for i, rs := range rr.RatedShipment {
		q, err := ratedShipmentToQuote(rs, now)
		if err != nil {
			return nil, shipper.NewCarrierError(carrierName, shipper.KindMalformedResponse,
				fmt.Sprintf("rated shipment %d: %s", i, err.Error()))
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func responseStatusCode(rr *RateResponse) string {
	if rr.Response == nil || rr.Response.ResponseStatus == nil {
		return ""
	}
	return rr.Response.ResponseStatus.Code
}

// responseErrorDescription prefers ResponseStatus, then the first alert.
func responseErrorDescription(rr *RateResponse) string {
	if rr.Response != nil {
		if s := rr.Response.ResponseStatus; s != nil && s.Description != "" {
			return s.Description
		}
		if len(rr.Response.Alert) > 0 && rr.Response.Alert[0].Description != "" {
			return rr.Response.Alert[0].Description
		}
	}
	return "unknown error"
}

func ratedShipmentToQuote(rs RatedShipment, now time.Time) (shipper.RateQuote, error) {
	serviceCode, serviceName := unknownServiceCode, unknownServiceName
	if rs.Service != nil {
		if rs.Service.Code != "" {
			serviceCode = rs.Service.Code
		}
		if rs.Service.Description != "" {
			serviceName = rs.Service.Description
		}
	}

	charges := rs.TotalCharges
	if charges == nil || strings.TrimSpace(charges.MonetaryValue) == "" {
		charges = rs.TransportationCharges
	}
	if charges == nil || strings.TrimSpace(charges.MonetaryValue) == "" {
		return shipper.RateQuote{}, fmt.Errorf("no monetary value for service %s", serviceCode)
	}

	cost, err := decimal.NewFromString(strings.TrimSpace(charges.MonetaryValue))
	if err != nil {
		return shipper.RateQuote{}, fmt.Errorf("invalid monetary value %q", charges.MonetaryValue)
	}
	if cost.IsNegative() {
		return shipper.RateQuote{}, fmt.Errorf("negative monetary value %q", charges.MonetaryValue)
	}

	currency := charges.CurrencyCode
	if currency == "" {
		currency = defaultCurrency
	}

	return shipper.RateQuote{
		Carrier:       carrierName,
		ServiceCode:   serviceCode,
		ServiceName:   serviceName,
		TotalCost:     cost,
		Currency:      currency,
		EstimatedDays: estimatedDays(rs.GuaranteedDelivery, now),
		QuoteID:       fmt.Sprintf("%s-%d", serviceCode, now.UnixMilli()),
	}, nil
}

var deliveryDateLayouts = []string{"20060102", "2006-01-02", time.RFC3339}

// estimatedDays rounds (delivery - now) up to whole days. Non-positive results
// and unparseable dates are reported as unknown.
func estimatedDays(gd *GuaranteedDelivery, now time.Time) *int {
	if gd == nil || strings.TrimSpace(gd.Date) == "" {
		return nil
	}

	var delivery time.Time
	var parsed bool
	for _, layout := range deliveryDateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(gd.Date), time.UTC); err == nil {
			delivery, parsed = t, true
			break
		}
	}
	if !parsed {
		return nil
	}

	days := int(math.Ceil(delivery.Sub(now).Hours() / 24))
	if days <= 0 {
		return nil
	}
	return &days
}

var _ shipper.Carrier = (*Client)(nil)
