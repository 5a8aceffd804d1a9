package shipper

import (
	"github.com/shopspring/decimal"
)

// Address represents a shipping address.
type Address struct {
	Lines         []string `validate:"required,min=1,dive,required"`
	City          string   `validate:"required"`
	StateProvince string
	PostalCode    string `validate:"required"`
	CountryCode   string `validate:"required,len=2,alpha"` // ISO 3166-1 alpha-2, e.g., "US"
}

// Dimensions holds package dimensions in inches.
type Dimensions struct {
	Length float64 `validate:"gt=0"`
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
}

// Package represents a package to be shipped. Weight is in pounds.
type Package struct {
	Weight     float64     `validate:"gt=0"`
	Dimensions *Dimensions `validate:"omitempty"`
}

// RateRequest is the carrier-agnostic request for shipping quotes.
type RateRequest struct {
	Origin      Address
	Destination Address
	Packages    []Package `validate:"required,min=1,dive"`

	// ServiceLevel optionally restricts the quote to one carrier service code.
	ServiceLevel string
}

// RateQuote is a single normalized rate returned by a carrier.
type RateQuote struct {
	Carrier       string
	ServiceCode   string
	ServiceName   string
	TotalCost     decimal.Decimal
	Currency      string
	EstimatedDays *int
	QuoteID       string
}
