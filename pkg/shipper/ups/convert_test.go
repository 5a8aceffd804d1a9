package ups

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/pkg/shipper"
)

var now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func TestAddressToAPI_OmitsEmptyLines(t *testing.T) {
	addr := addressToAPI(shipper.Address{City: "Austin", PostalCode: "78701", CountryCode: "US"})

	data, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AddressLine")
}

func TestPackagesToAPI_DimensionsOptional(t *testing.T) {
	pkgs := packagesToAPI([]shipper.Package{
		{Weight: 2.5},
		{Weight: 1, Dimensions: &shipper.Dimensions{Length: 12.25, Width: 4, Height: 0.5}},
	})

	require.Len(t, pkgs, 2)
	assert.Nil(t, pkgs[0].Dimensions)
	assert.Equal(t, "2.5", pkgs[0].PackageWeight.Weight)
	require.NotNil(t, pkgs[1].Dimensions)
	assert.Equal(t, "12.25", pkgs[1].Dimensions.Length)
	assert.Equal(t, "0.5", pkgs[1].Dimensions.Height)
	assert.Equal(t, "IN", pkgs[1].Dimensions.UnitOfMeasurement.Code)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "5", formatDecimal(5))
	assert.Equal(t, "0.1", formatDecimal(0.1))
	assert.Equal(t, "10.75", formatDecimal(10.75))
}

func TestEstimatedDays(t *testing.T) {
	tests := []struct {
		name string
		gd   *GuaranteedDelivery
		want *int
	}{
		{"absent", nil, nil},
		{"empty date", &GuaranteedDelivery{}, nil},
		{"compact date", &GuaranteedDelivery{Date: "20260113"}, intPtr(3)},
		{"iso date", &GuaranteedDelivery{Date: "2026-01-12"}, intPtr(2)},
		{"rfc3339", &GuaranteedDelivery{Date: "2026-01-11T13:00:00Z"}, intPtr(2)},
		{"same day", &GuaranteedDelivery{Date: "20260110"}, nil},
		{"past", &GuaranteedDelivery{Date: "20260101"}, nil},
		{"garbage", &GuaranteedDelivery{Date: "next week"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimatedDays(tt.gd, now))
		})
	}
}

func TestRatedShipmentToQuote_Defaults(t *testing.T) {
	q, err := ratedShipmentToQuote(RatedShipment{
		TotalCharges: &Charges{MonetaryValue: "12.00"},
	}, now)

	require.NoError(t, err)
	assert.Equal(t, unknownServiceCode, q.ServiceCode)
	assert.Equal(t, unknownServiceName, q.ServiceName)
	assert.Equal(t, "USD", q.Currency)
	assert.Nil(t, q.EstimatedDays)
	assert.Equal(t, "UNKNOWN-1768046400000", q.QuoteID)
}

func TestRatedShipmentToQuote_FallsBackToTransportationCharges(t *testing.T) {
	q, err := ratedShipmentToQuote(RatedShipment{
		Service:               &CodeDescription{Code: "65", Description: "UPS Saver"},
		TotalCharges:          &Charges{CurrencyCode: "CAD"},
		TransportationCharges: &Charges{CurrencyCode: "CAD", MonetaryValue: "41.10"},
	}, now)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("41.10").Equal(q.TotalCost))
	assert.Equal(t, "CAD", q.Currency)
}

func TestRatedShipmentToQuote_RejectsBadCost(t *testing.T) {
	for _, value := range []string{"", "abc", "-1.00"} {
		_, err := ratedShipmentToQuote(RatedShipment{
			TotalCharges: &Charges{CurrencyCode: "USD", MonetaryValue: value},
		}, now)
		assert.Error(t, err, "value %q", value)
	}
}

func TestRatesResponseToQuotes_DescriptionPrecedence(t *testing.T) {
	resp := &RateResponseEnvelope{RateResponse: &RateResponse{
		Response: &ResponseInfo{
			ResponseStatus: &ResponseStatus{Code: "0"},
			Alert:          oneOrMany[Alert]{{Code: "111100", Description: "Invalid postal code"}},
		},
	}}

	_, err := ratesResponseToQuotes(resp, now)

	assert.ErrorIs(t, err, shipper.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "UPS rejected rate request: Invalid postal code")

	resp.RateResponse.Response = nil
	_, err = ratesResponseToQuotes(resp, now)
	assert.Contains(t, err.Error(), "unknown error")
}

func TestRatesResponseToQuotes_WrapsShipmentIndex(t *testing.T) {
	resp := FixtureRateResponse(now)
	resp.RateResponse.RatedShipment[2].TotalCharges = nil
	resp.RateResponse.RatedShipment[2].TransportationCharges = nil

	_, err := ratesResponseToQuotes(resp, now)

	assert.ErrorIs(t, err, shipper.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "rated shipment 2")
}

func TestRatesResponseToQuotes_Nil(t *testing.T) {
	_, err := ratesResponseToQuotes(nil, now)
	assert.ErrorIs(t, err, shipper.ErrMalformedResponse)
}

func TestOneOrMany_SingleObject(t *testing.T) {
	var rr RateResponse
	err := json.Unmarshal([]byte(`{
		"Response": {"ResponseStatus": {"Code": "1"}, "Alert": {"Code": "1", "Description": "note"}},
		"RatedShipment": {"Service": {"Code": "03"}, "TotalCharges": {"MonetaryValue": "9.99"}}
	}`), &rr)

	require.NoError(t, err)
	require.Len(t, rr.RatedShipment, 1)
	assert.Equal(t, "03", rr.RatedShipment[0].Service.Code)
	require.Len(t, rr.Response.Alert, 1)
	assert.Equal(t, "note", rr.Response.Alert[0].Description)
}

func TestRateRequestToAPI_ServiceLevel(t *testing.T) {
	req := &shipper.RateRequest{Packages: []shipper.Package{{Weight: 1}}}

	env := rateRequestToAPI(req, "")
	assert.Nil(t, env.RateRequest.Shipment.Service)

	req.ServiceLevel = "01"
	env = rateRequestToAPI(req, "ACCT")
	require.NotNil(t, env.RateRequest.Shipment.Service)
	assert.Equal(t, "01", env.RateRequest.Shipment.Service.Code)
	assert.Equal(t, "ACCT", env.RateRequest.Shipment.Shipper.ShipperNumber)
}

func TestNewTransactionID(t *testing.T) {
	a, b := newTransactionID(), newTransactionID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func intPtr(v int) *int { return &v }
