package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/promo"
)

// Line is a cart line handed to the aggregator. Only the variant reference
// and quantity matter; unit prices always come from the live catalog.
type Line struct {
	VariantID uuid.UUID
	Qty       int32
}

// LineResult is the priced form of one cart line.
type LineResult struct {
	VariantID    uuid.UUID
	SKU          string
	Name         string
	Qty          int32
	UnitPrice    decimal.Decimal
	UnitFinal    decimal.Decimal
	UnitDiscount decimal.Decimal
	LineTotal    decimal.Decimal
	LineSavings  decimal.Decimal
	Applied      []promo.Resolved
}

// RateQuote is the shipping rate considered for the cart.
type RateQuote struct {
	Method   string
	Price    decimal.Decimal
	MinOrder *decimal.Decimal
	MaxOrder *decimal.Decimal
}

// Result is the full priced breakdown of a cart.
type Result struct {
	Lines            []LineResult
	Subtotal         decimal.Decimal
	PromotionSavings decimal.Decimal
	CouponApplied    bool
	CouponCode       string
	DiscountAmount   decimal.Decimal
	Taxable          decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
	ShippingMethod   string
	ShippingAmount   decimal.Decimal
	Total            decimal.Decimal
}

// Aggregator prices a cart end to end. The identical code path serves
// read-only cart display and the checkout transaction, so a quoted total can
// never drift from the charged one.
type Aggregator struct {
	Catalog  promo.Catalog
	Resolver *promo.Resolver
	Now      func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// PriceCart prices every line against live catalog prices and active
// promotions, then applies the optional coupon (soft: an inapplicable coupon
// is skipped, not an error), tax and shipping.
func (a *Aggregator) PriceCart(ctx context.Context, lines []Line, rule *coupon.Rule, rate *RateQuote, taxRate decimal.Decimal) (Result, error) {
	if a == nil || a.Catalog == nil || a.Resolver == nil {
		return Result{}, errors.New("pricing: aggregator not configured")
	}

	res := Result{TaxRate: taxRate}
	subtotal := decimal.Zero
	savings := decimal.Zero

	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		vc, err := a.Catalog.GetVariantCatalog(ctx, line.VariantID)
		if err != nil {
			return Result{}, err
		}
		promos, err := a.Resolver.ResolveFor(ctx, line.VariantID, &vc)
		if err != nil {
			return Result{}, err
		}
		quote := BestPrice(vc.Price, promos)
		qty := decimal.NewFromInt(int64(line.Qty))
		lineTotal := quote.FinalPrice.Mul(qty)
		lineSavings := quote.DiscountAmount.Mul(qty)

		res.Lines = append(res.Lines, LineResult{
			VariantID:    vc.VariantID,
			SKU:          vc.SKU,
			Name:         vc.Name,
			Qty:          line.Qty,
			UnitPrice:    quote.OriginalPrice,
			UnitFinal:    quote.FinalPrice,
			UnitDiscount: quote.DiscountAmount,
			LineTotal:    lineTotal,
			LineSavings:  lineSavings,
			Applied:      quote.Applied,
		})
		subtotal = subtotal.Add(lineTotal)
		savings = savings.Add(lineSavings)
	}

	res.Subtotal = money.Round(subtotal)
	res.PromotionSavings = money.Round(savings)

	discount := decimal.Zero
	if rule != nil {
		if err := rule.Validate(a.now(), res.Subtotal); err == nil {
			discount = money.Round(coupon.Discount(res.Subtotal, *rule))
			res.CouponApplied = true
			res.CouponCode = rule.Code
		}
	}
	res.DiscountAmount = discount
	res.Taxable = res.Subtotal.Sub(discount)

	res.TaxAmount = money.Round(res.Taxable.Mul(taxRate))

	if rate != nil {
		res.ShippingMethod = rate.Method
		if InBand(res.Subtotal, rate.MinOrder, rate.MaxOrder) {
			res.ShippingAmount = money.Round(rate.Price)
		} else {
			// Band miss zeroes shipping for display; checkout treats it as
			// a business-rule failure instead.
			res.ShippingAmount = decimal.Zero
		}
	} else {
		res.ShippingAmount = decimal.Zero
	}

	res.Total = money.Round(res.Taxable.Add(res.TaxAmount).Add(res.ShippingAmount))
	return res, nil
}

// InBand reports whether the subtotal sits inside the rate's optional
// [minOrder, maxOrder] window.
func InBand(subtotal decimal.Decimal, minOrder, maxOrder *decimal.Decimal) bool {
	if minOrder != nil && subtotal.LessThan(*minOrder) {
		return false
	}
	if maxOrder != nil && subtotal.GreaterThan(*maxOrder) {
		return false
	}
	return true
}
