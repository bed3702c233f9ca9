package repo

import "context"

const findShippingRate = `
SELECT id, country, state, method, price::text, currency, min_order::text, max_order::text
FROM shipping_rates
WHERE country = $1
  AND method = $3
  AND (state = $2 OR state IS NULL)
ORDER BY state NULLS LAST
LIMIT 1
`

// FindShippingRate resolves the rate for a destination and method, preferring
// a state-specific row over the country-wide fallback.
func (q *Queries) FindShippingRate(ctx context.Context, country, state, method string) (ShippingRate, error) {
	var (
		r                  ShippingRate
		price              string
		minOrder, maxOrder *string
	)
	row := q.db.QueryRow(ctx, findShippingRate, country, state, method)
	if err := row.Scan(&r.ID, &r.Country, &r.State, &r.Method, &price, &r.Currency, &minOrder, &maxOrder); err != nil {
		return ShippingRate{}, err
	}
	parsed, err := parseDecimal(price)
	if err != nil {
		return ShippingRate{}, err
	}
	r.Price = parsed
	if r.MinOrder, err = parseNullDecimal(minOrder); err != nil {
		return ShippingRate{}, err
	}
	if r.MaxOrder, err = parseNullDecimal(maxOrder); err != nil {
		return ShippingRate{}, err
	}
	return r, nil
}
