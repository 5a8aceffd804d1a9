// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Carrier defines the interface that every rate-quoting carrier adapter implements.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "ups").
	Name() string

	// GetRates returns normalized rate quotes for a validated request.
	GetRates(ctx context.Context, req *RateRequest) ([]RateQuote, error)
}
