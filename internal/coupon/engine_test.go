package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/money"
)

func activeRule() Rule {
	return Rule{
		Code: "SAVE10", DiscountType: DiscountFixed,
		DiscountValue: decimal.RequireFromString("10.00"), IsActive: true,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subtotal := decimal.RequireFromString("100.00")

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, activeRule().Validate(now, subtotal))
	})

	t.Run("inactive", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		r.IsActive = false
		require.ErrorIs(t, r.Validate(now, subtotal), ErrInactive)
	})

	t.Run("expired at the exact instant", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		r.ExpiresAt = &now
		require.ErrorIs(t, r.Validate(now, subtotal), ErrExpired)
	})

	t.Run("not yet expired", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		later := now.Add(time.Minute)
		r.ExpiresAt = &later
		require.NoError(t, r.Validate(now, subtotal))
	})

	t.Run("usage limit reached", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		limit := int32(3)
		r.UsageLimit = &limit
		r.UsedCount = 3
		require.ErrorIs(t, r.Validate(now, subtotal), ErrUsageLimitReached)
	})

	t.Run("below minimum cart total", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		minTotal := decimal.RequireFromString("150.00")
		r.MinCartTotal = &minTotal
		require.ErrorIs(t, r.Validate(now, subtotal), ErrMinCartTotal)
		// ValidateAt ignores the subtotal-dependent condition.
		require.NoError(t, r.ValidateAt(now))
	})
}

func TestDiscount(t *testing.T) {
	t.Parallel()
	subtotal := decimal.RequireFromString("200.00")

	t.Run("fixed", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "10.00", money.Format(Discount(subtotal, activeRule())))
	})

	t.Run("percent", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		r.DiscountType = DiscountPercent
		r.DiscountValue = decimal.RequireFromString("15")
		require.Equal(t, "30.00", money.Format(Discount(subtotal, r)))
	})

	t.Run("clamped to subtotal", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		r.DiscountValue = decimal.RequireFromString("500.00")
		require.Equal(t, "200.00", money.Format(Discount(subtotal, r)))
	})

	t.Run("zero subtotal", func(t *testing.T) {
		t.Parallel()
		require.True(t, Discount(decimal.Zero, activeRule()).IsZero())
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		r := activeRule()
		r.DiscountType = "POINTS"
		require.True(t, Discount(subtotal, r).IsZero())
	})
}
