package server

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tournevent/ratebridge/pkg/shipper"
)

// AddressInput is the JSON shape of an address.
type AddressInput struct {
	Lines         []string `json:"lines"`
	City          string   `json:"city"`
	StateProvince string   `json:"stateProvince,omitempty"`
	PostalCode    string   `json:"postalCode"`
	CountryCode   string   `json:"countryCode"`
}

// DimensionsInput is in inches.
type DimensionsInput struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PackageInput is in pounds.
type PackageInput struct {
	Weight     float64          `json:"weight"`
	Dimensions *DimensionsInput `json:"dimensions,omitempty"`
}

// RateRequestInput is the body of POST /v1/rates.
type RateRequestInput struct {
	Origin       AddressInput   `json:"origin"`
	Destination  AddressInput   `json:"destination"`
	Packages     []PackageInput `json:"packages"`
	ServiceLevel string         `json:"serviceLevel,omitempty"`
}

// RateQuoteOutput is one quote in a rates response. Totals carry two decimals.
type RateQuoteOutput struct {
	Carrier       string `json:"carrier"`
	ServiceCode   string `json:"serviceCode"`
	ServiceName   string `json:"serviceName"`
	TotalCost     string `json:"totalCost"`
	Currency      string `json:"currency"`
	EstimatedDays *int   `json:"estimatedDays"`
	QuoteID       string `json:"quoteId"`
}

// RatesResponse is the body of a successful rates call.
type RatesResponse struct {
	Quotes []RateQuoteOutput `json:"quotes"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody names the error kind and carries a readable message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DecodeRateRequest reads a JSON rate request. Malformed JSON is INVALID_REQUEST;
// field validation is left to the registry.
func DecodeRateRequest(r io.Reader) (*shipper.RateRequest, error) {
	var input RateRequestInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, shipper.NewCarrierError("", shipper.KindInvalidRequest,
			fmt.Sprintf("invalid JSON body: %v", err)).WithCause(err)
	}
	return input.toModel(), nil
}

func (in RateRequestInput) toModel() *shipper.RateRequest {
	req := &shipper.RateRequest{
		Origin:       in.Origin.toModel(),
		Destination:  in.Destination.toModel(),
		Packages:     make([]shipper.Package, len(in.Packages)),
		ServiceLevel: in.ServiceLevel,
	}
	for i, p := range in.Packages {
		pkg := shipper.Package{Weight: p.Weight}
		if p.Dimensions != nil {
			pkg.Dimensions = &shipper.Dimensions{
				Length: p.Dimensions.Length,
				Width:  p.Dimensions.Width,
				Height: p.Dimensions.Height,
			}
		}
		req.Packages[i] = pkg
	}
	return req
}

func (in AddressInput) toModel() shipper.Address {
	return shipper.Address{
		Lines:         in.Lines,
		City:          in.City,
		StateProvince: in.StateProvince,
		PostalCode:    in.PostalCode,
		CountryCode:   in.CountryCode,
	}
}

// QuotesToOutput converts quotes for the wire. The result is never nil.
func QuotesToOutput(quotes []shipper.RateQuote) []RateQuoteOutput {
	out := make([]RateQuoteOutput, len(quotes))
	for i, q := range quotes {
		out[i] = RateQuoteOutput{
			Carrier:       q.Carrier,
			ServiceCode:   q.ServiceCode,
			ServiceName:   q.ServiceName,
			TotalCost:     q.TotalCost.StringFixed(2),
			Currency:      q.Currency,
			EstimatedDays: q.EstimatedDays,
			QuoteID:       q.QuoteID,
		}
	}
	return out
}
