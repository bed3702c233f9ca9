// Package pricing computes item prices and full cart breakdowns. Every
// function here is deterministic: the same inputs always produce the same
// rounded outputs, which is what lets cart display and checkout share one
// pricing path without drift.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/promo"
)

// Quote is the outcome of pricing a single unit against its promotions.
type Quote struct {
	OriginalPrice  decimal.Decimal
	FinalPrice     decimal.Decimal
	DiscountAmount decimal.Decimal
	Applied        []promo.Resolved
}

// BestPrice applies the resolved promotions to a base price.
//
// When at least one promotion is stackable the whole set switches to stacked
// mode: promotions are walked in priority order and every stackable one is
// applied against the running price. Non-stackable promotions are skipped
// inside the loop but do not disable stacking. Otherwise best-single mode
// picks the one promotion with the largest discount against the base price,
// ties going to the lower priority level.
func BestPrice(base decimal.Decimal, promos []promo.Resolved) Quote {
	if base.IsNegative() {
		base = decimal.Zero
	}
	if len(promos) == 0 {
		return Quote{
			OriginalPrice:  money.Round(base),
			FinalPrice:     money.Round(base),
			DiscountAmount: decimal.Zero,
		}
	}

	sorted := make([]promo.Resolved, len(promos))
	copy(sorted, promos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	if anyStackable(sorted) {
		return stack(base, sorted)
	}
	return bestSingle(base, sorted)
}

func anyStackable(promos []promo.Resolved) bool {
	for _, p := range promos {
		if p.IsStackable {
			return true
		}
	}
	return false
}

func stack(base decimal.Decimal, sorted []promo.Resolved) Quote {
	current := base
	var applied []promo.Resolved
	for _, p := range sorted {
		if !p.IsStackable {
			continue
		}
		if current.IsZero() {
			break
		}
		d := discountFor(current, p)
		if !d.IsPositive() {
			continue
		}
		current = current.Sub(d)
		applied = append(applied, p)
	}
	discount := base.Sub(current)
	return Quote{
		OriginalPrice:  money.Round(base),
		FinalPrice:     money.Round(current),
		DiscountAmount: money.Round(discount),
		Applied:        applied,
	}
}

func bestSingle(base decimal.Decimal, sorted []promo.Resolved) Quote {
	var (
		best         *promo.Resolved
		bestDiscount decimal.Decimal
	)
	for i := range sorted {
		d := discountFor(base, sorted[i])
		// Strictly-greater keeps the first (lowest priority) winner on ties.
		if best == nil || d.GreaterThan(bestDiscount) {
			best = &sorted[i]
			bestDiscount = d
		}
	}
	if best == nil || !bestDiscount.IsPositive() {
		return Quote{
			OriginalPrice:  money.Round(base),
			FinalPrice:     money.Round(base),
			DiscountAmount: decimal.Zero,
		}
	}
	return Quote{
		OriginalPrice:  money.Round(base),
		FinalPrice:     money.Round(base.Sub(bestDiscount)),
		DiscountAmount: money.Round(bestDiscount),
		Applied:        []promo.Resolved{*best},
	}
}

// discountFor computes a single promotion's discount against the price it is
// being applied to, never exceeding that price.
func discountFor(price decimal.Decimal, p promo.Resolved) decimal.Decimal {
	var d decimal.Decimal
	switch p.DiscountType {
	case promo.DiscountPercent:
		d = money.Percent(price, p.DiscountValue)
	case promo.DiscountFixed:
		d = p.DiscountValue
	default:
		return decimal.Zero
	}
	d = money.ClampNonNegative(d)
	return money.Min(d, price)
}
