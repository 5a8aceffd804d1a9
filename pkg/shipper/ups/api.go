package ups

import (
	"bytes"
	"context"
	"encoding/json"
)

// APIClient defines the interface for UPS Rating API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// Rate sends one rating request. Errors are always *shipper.CarrierError.
	Rate(ctx context.Context, req *RateRequestEnvelope) (*RateResponseEnvelope, error)
}

// TokenSource supplies bearer tokens for the Rating API.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
	ClearToken()
}

// ============================================================================
// Rate request (POST /api/rating/v1/Rate)
// ============================================================================

// RateRequestEnvelope is the top-level rating request body.
type RateRequestEnvelope struct {
	RateRequest RateRequest `json:"RateRequest"`
}

// RateRequest carries the request options and shipment.
type RateRequest struct {
	Request  RequestOptions `json:"Request"`
	Shipment Shipment       `json:"Shipment"`
}

// RequestOptions selects the rating mode.
type RequestOptions struct {
	RequestOption string `json:"RequestOption"`
}

// Shipment describes what is being rated.
type Shipment struct {
	Shipper Shipper   `json:"Shipper"`
	ShipTo  ShipTo    `json:"ShipTo"`
	Service *CodeOnly `json:"Service,omitempty"`
	Package []Package `json:"Package"`
}

// Shipper is the origin party.
type Shipper struct {
	ShipperNumber string  `json:"ShipperNumber,omitempty"`
	Address       Address `json:"Address"`
}

// ShipTo is the destination party.
type ShipTo struct {
	Address Address `json:"Address"`
}

// Address is the UPS address shape.
type Address struct {
	AddressLine       []string `json:"AddressLine,omitempty"`
	City              string   `json:"City"`
	StateProvinceCode string   `json:"StateProvinceCode"`
	PostalCode        string   `json:"PostalCode"`
	CountryCode       string   `json:"CountryCode"`
}

// CodeOnly is a UPS code object.
type CodeOnly struct {
	Code string `json:"Code"`
}

// Package is one rated package. Numeric fields are decimal strings.
type Package struct {
	PackagingType CodeOnly      `json:"PackagingType"`
	Dimensions    *Dimensions   `json:"Dimensions,omitempty"`
	PackageWeight PackageWeight `json:"PackageWeight"`
}

// Dimensions in inches.
type Dimensions struct {
	UnitOfMeasurement CodeOnly `json:"UnitOfMeasurement"`
	Length            string   `json:"Length"`
	Width             string   `json:"Width"`
	Height            string   `json:"Height"`
}

// PackageWeight in pounds.
type PackageWeight struct {
	UnitOfMeasurement CodeOnly `json:"UnitOfMeasurement"`
	Weight            string   `json:"Weight"`
}

// ============================================================================
// Rate response. Every nested field is optional and checked before use.
// ============================================================================

// RateResponseEnvelope is the top-level rating response body.
type RateResponseEnvelope struct {
	RateResponse *RateResponse `json:"RateResponse"`
}

// RateResponse holds the status and rated shipments.
type RateResponse struct {
	Response      *ResponseInfo            `json:"Response"`
	RatedShipment oneOrMany[RatedShipment] `json:"RatedShipment"`
}

// ResponseInfo is the embedded status.
type ResponseInfo struct {
	ResponseStatus *ResponseStatus  `json:"ResponseStatus"`
	Alert          oneOrMany[Alert] `json:"Alert"`
}

// ResponseStatus code "1" means success.
type ResponseStatus struct {
	Code        string `json:"Code"`
	Description string `json:"Description"`
}

// Alert is a carrier warning or error note.
type Alert struct {
	Code        string `json:"Code"`
	Description string `json:"Description"`
}

// RatedShipment is one priced service.
type RatedShipment struct {
	Service               *CodeDescription    `json:"Service"`
	TotalCharges          *Charges            `json:"TotalCharges"`
	TransportationCharges *Charges            `json:"TransportationCharges"`
	GuaranteedDelivery    *GuaranteedDelivery `json:"GuaranteedDelivery"`
}

// CodeDescription is a UPS code with a description.
type CodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description"`
}

// Charges is a monetary amount as sent by UPS.
type Charges struct {
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

// GuaranteedDelivery carries the committed delivery date.
type GuaranteedDelivery struct {
	BusinessDaysInTransit string `json:"BusinessDaysInTransit,omitempty"`
	Date                  string `json:"Date,omitempty"`
}

// oneOrMany decodes either a JSON array or a single object.
// UPS collapses one-element lists into a bare object.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}
