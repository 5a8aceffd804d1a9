package shipper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoCarriers is returned when a registry is built without carriers.
var ErrNoCarriers = errors.New("at least one carrier is required")

// Registry aggregates the configured carriers behind one facade.
// The carrier set is fixed at construction, so no locking is needed.
type Registry struct {
	carriers []Carrier
	byName   map[string]Carrier
	logger   *otelzap.Logger
}

// NewRegistry creates a registry over a non-empty list of uniquely named carriers.
func NewRegistry(logger *otelzap.Logger, carriers ...Carrier) (*Registry, error) {
	if len(carriers) == 0 {
		return nil, ErrNoCarriers
	}

	byName := make(map[string]Carrier, len(carriers))
	for _, c := range carriers {
		key := strings.ToLower(c.Name())
		if _, dup := byName[key]; dup {
			return nil, fmt.Errorf("duplicate carrier %q", c.Name())
		}
		byName[key] = c
	}

	return &Registry{
		carriers: carriers,
		byName:   byName,
		logger:   logger,
	}, nil
}

// Get returns a carrier by case-insensitive name.
func (r *Registry) Get(name string) (Carrier, error) {
	if c, ok := r.byName[strings.ToLower(name)]; ok {
		return c, nil
	}
	return nil, NewCarrierError(name, KindCarrierUnavailable, fmt.Sprintf("carrier %q is not configured", name))
}

// Names returns the names of all registered carriers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.carriers))
	for i, c := range r.carriers {
		names[i] = c.Name()
	}
	return names
}

// Count returns the number of registered carriers.
func (r *Registry) Count() int {
	return len(r.carriers)
}

// GetRates validates the request and fetches quotes from all carriers in parallel.
// A failing carrier is logged and contributes no quotes; it never fails the call.
// Quotes are merged in registration order.
func (r *Registry) GetRates(ctx context.Context, req *RateRequest) ([]RateQuote, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	perCarrier := make([][]RateQuote, len(r.carriers))

	var g errgroup.Group
	for i, c := range r.carriers {
		g.Go(func() error {
			quotes, err := c.GetRates(ctx, req)
			if err != nil {
				r.logger.Ctx(ctx).Warn("Carrier rate request failed",
					zap.String("carrier", c.Name()),
					zap.String("error_kind", string(KindOf(err))),
					zap.Error(err),
				)
				return nil // Don't fail the group, continue with other carriers
			}
			perCarrier[i] = quotes
			return nil
		})
	}
	_ = g.Wait()

	results := make([]RateQuote, 0)
	for _, quotes := range perCarrier {
		results = append(results, quotes...)
	}
	return results, nil
}

// GetRatesFromCarrier validates the request and fetches quotes from one carrier.
// Errors from the carrier are returned as-is.
func (r *Registry) GetRatesFromCarrier(ctx context.Context, name string, req *RateRequest) ([]RateQuote, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return c.GetRates(ctx, req)
}
