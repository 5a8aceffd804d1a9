package ups

import (
	"context"
	"time"

	"github.com/tournevent/ratebridge/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing and local runs.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnRate func(ctx context.Context, req *RateRequestEnvelope) (*RateResponseEnvelope, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Rate returns the fixture rate response.
func (m *MockAPIClient) Rate(ctx context.Context, req *RateRequestEnvelope) (*RateResponseEnvelope, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, shipper.NewCarrierError(carrierName, shipper.KindTimeout, "mock rate request cancelled").
				WithCause(ctx.Err())
		}
	}

	if m.SimulateErrors {
		return nil, shipper.NewCarrierError(carrierName, shipper.KindCarrierUnavailable, "simulated API error").
			WithStatusCode(503)
	}

	if m.OnRate != nil {
		return m.OnRate(ctx, req)
	}

	return FixtureRateResponse(time.Now()), nil
}

// FixtureRateResponse returns a successful response with four services
// (Ground, Next Day Air, 2nd Day Air, 3 Day Select), dated relative to now.
func FixtureRateResponse(now time.Time) *RateResponseEnvelope {
	date := func(days int) *GuaranteedDelivery {
		return &GuaranteedDelivery{Date: now.AddDate(0, 0, days).Format("20060102")}
	}
	usd := func(v string) *Charges {
		return &Charges{CurrencyCode: "USD", MonetaryValue: v}
	}

	return &RateResponseEnvelope{
		RateResponse: &RateResponse{
			Response: &ResponseInfo{
				ResponseStatus: &ResponseStatus{Code: "1", Description: "Success"},
			},
			RatedShipment: oneOrMany[RatedShipment]{
				{
					Service:               &CodeDescription{Code: "03", Description: "UPS Ground"},
					TotalCharges:          usd("25.50"),
					TransportationCharges: usd("25.50"),
				},
				{
					Service:               &CodeDescription{Code: "01", Description: "UPS Next Day Air"},
					TotalCharges:          usd("45.75"),
					TransportationCharges: usd("45.75"),
					GuaranteedDelivery:    date(2),
				},
				{
					Service:               &CodeDescription{Code: "02", Description: "UPS 2nd Day Air"},
					TotalCharges:          usd("35.25"),
					TransportationCharges: usd("35.25"),
					GuaranteedDelivery:    date(3),
				},
				{
					Service:               &CodeDescription{Code: "12", Description: "UPS 3 Day Select"},
					TotalCharges:          usd("30.00"),
					TransportationCharges: usd("30.00"),
					GuaranteedDelivery:    date(4),
				},
			},
		},
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
