// Package coupon holds the cart-level coupon rules. Validation and discount
// computation are pure so the soft path (cart display skips an inapplicable
// coupon) and the strict path (checkout aborts on one) share the same checks.
package coupon

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Discount type discriminators.
const (
	DiscountPercent = "PERCENT"
	DiscountFixed   = "FIXED"
)

var (
	// ErrInactive is returned for a disabled coupon.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned once the expiry instant has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the global usage quota is exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinCartTotal indicates the cart subtotal is below the threshold.
	ErrMinCartTotal = errors.New("coupon minimum cart total not met")
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	ID            uuid.UUID
	Code          string
	DiscountType  string
	DiscountValue decimal.Decimal
	MinCartTotal  *decimal.Decimal
	ExpiresAt     *time.Time
	UsageLimit    *int32
	UsedCount     int32
	IsActive      bool
}

// RuleFromRepo converts a stored coupon row into a Rule.
func RuleFromRepo(c repo.Coupon) Rule {
	return Rule{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MinCartTotal:  c.MinCartTotal,
		ExpiresAt:     c.ExpiresAt,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		IsActive:      c.IsActive,
	}
}

// ValidateAt checks the subtotal-independent conditions: active flag, expiry
// and the global usage quota. Checkout runs this before pricing; the cart
// total threshold can only be checked afterwards.
func (r Rule) ValidateAt(now time.Time) error {
	if !r.IsActive {
		return ErrInactive
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return ErrExpired
	}
	if r.UsageLimit != nil && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Validate checks every applicability condition at the given instant and cart
// subtotal, returning the first violated one.
func (r Rule) Validate(now time.Time, subtotal decimal.Decimal) error {
	if err := r.ValidateAt(now); err != nil {
		return err
	}
	if r.MinCartTotal != nil && subtotal.LessThan(*r.MinCartTotal) {
		return ErrMinCartTotal
	}
	return nil
}

// Discount computes the coupon's discount against the cart subtotal, clamped
// so it never exceeds the subtotal.
func Discount(subtotal decimal.Decimal, r Rule) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch r.DiscountType {
	case DiscountPercent:
		d = money.Percent(subtotal, r.DiscountValue)
	case DiscountFixed:
		d = r.DiscountValue
	default:
		return decimal.Zero
	}
	d = money.ClampNonNegative(d)
	return money.Min(d, subtotal)
}
