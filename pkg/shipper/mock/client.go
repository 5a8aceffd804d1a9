// Package mock provides a mock carrier implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/ratebridge/pkg/shipper"
)

// Client is a mock carrier for testing.
type Client struct {
	name  string
	calls atomic.Int32

	// Err, when set, is returned from every GetRates call.
	Err error

	// OnGetRates overrides the default quotes.
	OnGetRates func(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error)
}

// New creates a new mock carrier.
func New(name string) *Client {
	return &Client{name: name}
}

// NewFailing creates a mock carrier whose every call fails with err.
func NewFailing(name string, err error) *Client {
	return &Client{name: name, Err: err}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Calls returns how many times GetRates was invoked.
func (c *Client) Calls() int {
	return int(c.calls.Load())
}

// GetRates returns mock rate quotes.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.RateQuote, error) {
	c.calls.Add(1)

	if c.Err != nil {
		return nil, c.Err
	}
	if c.OnGetRates != nil {
		return c.OnGetRates(ctx, req)
	}

	now := time.Now()
	standardDays, expressDays := 5, 2

	return []shipper.RateQuote{
		{
			Carrier:       c.name,
			ServiceCode:   "STANDARD",
			ServiceName:   fmt.Sprintf("%s Standard", c.name),
			TotalCost:     decimal.RequireFromString("15.82"),
			Currency:      "USD",
			EstimatedDays: &standardDays,
			QuoteID:       fmt.Sprintf("STANDARD-%d", now.UnixMilli()),
		},
		{
			Carrier:       c.name,
			ServiceCode:   "EXPRESS",
			ServiceName:   fmt.Sprintf("%s Express", c.name),
			TotalCost:     decimal.RequireFromString("29.95"),
			Currency:      "USD",
			EstimatedDays: &expressDays,
			QuoteID:       fmt.Sprintf("EXPRESS-%d", now.UnixMilli()),
		},
	}, nil
}

var _ shipper.Carrier = (*Client)(nil)
