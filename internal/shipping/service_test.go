package shipping

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/repo"
)

type fakeRateStore struct {
	rates []repo.ShippingRate
}

func (f *fakeRateStore) FindShippingRate(_ context.Context, country, state, method string) (repo.ShippingRate, error) {
	var countryWide *repo.ShippingRate
	for i, r := range f.rates {
		if r.Country != country || r.Method != method {
			continue
		}
		if r.State != nil && *r.State == state {
			return r, nil
		}
		if r.State == nil && countryWide == nil {
			countryWide = &f.rates[i]
		}
	}
	if countryWide != nil {
		return *countryWide, nil
	}
	return repo.ShippingRate{}, pgx.ErrNoRows
}

func TestFindRatePrefersStateSpecific(t *testing.T) {
	t.Parallel()
	ca := "CA"
	svc := &Service{Store: &fakeRateStore{rates: []repo.ShippingRate{
		{Country: "US", Method: "standard", Price: decimal.RequireFromString("8.00")},
		{Country: "US", State: &ca, Method: "standard", Price: decimal.RequireFromString("5.00")},
	}}}

	rate, err := svc.FindRate(context.Background(), "US", "CA", "standard")
	require.NoError(t, err)
	require.Equal(t, "5", rate.Price.String())

	rate, err = svc.FindRate(context.Background(), "US", "NY", "standard")
	require.NoError(t, err)
	require.Equal(t, "8", rate.Price.String())
}

func TestFindRateNoMatch(t *testing.T) {
	t.Parallel()
	svc := &Service{Store: &fakeRateStore{}}

	_, err := svc.FindRate(context.Background(), "US", "", "standard")
	require.ErrorIs(t, err, ErrNoRate)

	_, err = svc.FindRate(context.Background(), "", "", "standard")
	require.ErrorIs(t, err, ErrNoRate)

	_, err = svc.FindRate(context.Background(), "US", "", "")
	require.ErrorIs(t, err, ErrNoRate)
}

func TestQuoteCarriesBand(t *testing.T) {
	t.Parallel()
	minOrder := decimal.RequireFromString("50.00")
	q := Quote(repo.ShippingRate{
		Method: "standard", Price: decimal.RequireFromString("5.00"), MinOrder: &minOrder,
	})
	require.Equal(t, "standard", q.Method)
	require.NotNil(t, q.MinOrder)
	require.Nil(t, q.MaxOrder)
}
