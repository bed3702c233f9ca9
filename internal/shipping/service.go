// Package shipping resolves flat shipping rates for a destination.
package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// ErrNoRate indicates no rate covers the destination and method.
var ErrNoRate = errors.New("shipping: no rate for destination")

// Store provides shipping rate lookups.
type Store interface {
	FindShippingRate(ctx context.Context, country, state, method string) (repo.ShippingRate, error)
}

// Service resolves shipping rates.
type Service struct {
	Store Store
}

// FindRate resolves the rate for a country (optionally a state) and method.
// A state-specific rate wins over a country-wide one; that preference is
// encoded in the query ordering.
func (s *Service) FindRate(ctx context.Context, country, state, method string) (repo.ShippingRate, error) {
	if s == nil || s.Store == nil {
		return repo.ShippingRate{}, errors.New("shipping: service not configured")
	}
	country = strings.TrimSpace(country)
	method = strings.TrimSpace(method)
	if country == "" || method == "" {
		return repo.ShippingRate{}, ErrNoRate
	}
	rate, err := s.Store.FindShippingRate(ctx, country, strings.TrimSpace(state), method)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ShippingRate{}, ErrNoRate
		}
		return repo.ShippingRate{}, err
	}
	return rate, nil
}

// Quote converts a stored rate into the aggregator's input shape.
func Quote(rate repo.ShippingRate) pricing.RateQuote {
	return pricing.RateQuote{
		Method:   rate.Method,
		Price:    rate.Price,
		MinOrder: rate.MinOrder,
		MaxOrder: rate.MaxOrder,
	}
}
