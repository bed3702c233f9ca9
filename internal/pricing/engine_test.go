package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/promo"
	"github.com/noah-isme/storefront-api/internal/repo"
)

func resolved(level string, priority int, discountType, value string, stackable bool) promo.Resolved {
	return promo.Resolved{
		Promotion: repo.Promotion{
			Name:          level + " " + value,
			DiscountType:  discountType,
			DiscountValue: decimal.RequireFromString(value),
			IsStackable:   stackable,
			IsActive:      true,
		},
		Level:    level,
		Priority: priority,
	}
}

func TestBestPriceNoPromotions(t *testing.T) {
	t.Parallel()
	q := BestPrice(decimal.RequireFromString("1000"), nil)
	require.Equal(t, "1000.00", money.Format(q.FinalPrice))
	require.Equal(t, "0.00", money.Format(q.DiscountAmount))
	require.Empty(t, q.Applied)
}

func TestBestSinglePicksLargestDiscount(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountPercent, "10", false),
		resolved(promo.LevelProduct, promo.PriorityProduct, promo.DiscountPercent, "20", false),
	}
	q := BestPrice(decimal.RequireFromString("1000"), promos)
	require.Equal(t, "800.00", money.Format(q.FinalPrice))
	require.Equal(t, "200.00", money.Format(q.DiscountAmount))
	require.Len(t, q.Applied, 1)
	require.Equal(t, promo.LevelProduct, q.Applied[0].Level)
}

func TestBestSingleTieGoesToLowerPriority(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelCategory, promo.PriorityCategory, promo.DiscountPercent, "10", false),
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountPercent, "10", false),
	}
	q := BestPrice(decimal.RequireFromString("1000"), promos)
	require.Equal(t, "900.00", money.Format(q.FinalPrice))
	require.Equal(t, promo.LevelVariant, q.Applied[0].Level)
}

func TestStackAppliesInPriorityOrder(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelProduct, promo.PriorityProduct, promo.DiscountPercent, "20", true),
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountPercent, "10", true),
	}
	// 1000 -> 900 (variant first) -> 720.
	q := BestPrice(decimal.RequireFromString("1000"), promos)
	require.Equal(t, "720.00", money.Format(q.FinalPrice))
	require.Equal(t, "280.00", money.Format(q.DiscountAmount))
	require.Len(t, q.Applied, 2)
	require.Equal(t, promo.LevelVariant, q.Applied[0].Level)
	require.Equal(t, promo.LevelProduct, q.Applied[1].Level)
}

func TestOneStackableSwitchesWholeSetToStacking(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountPercent, "50", false),
		resolved(promo.LevelProduct, promo.PriorityProduct, promo.DiscountPercent, "20", true),
	}
	// The non-stackable 50% is skipped even though alone it would win.
	q := BestPrice(decimal.RequireFromString("1000"), promos)
	require.Equal(t, "800.00", money.Format(q.FinalPrice))
	require.Len(t, q.Applied, 1)
	require.Equal(t, promo.LevelProduct, q.Applied[0].Level)
}

func TestStackNeverGoesNegative(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountFixed, "800", true),
		resolved(promo.LevelProduct, promo.PriorityProduct, promo.DiscountFixed, "500", true),
	}
	q := BestPrice(decimal.RequireFromString("1000"), promos)
	require.Equal(t, "0.00", money.Format(q.FinalPrice))
	require.Equal(t, "1000.00", money.Format(q.DiscountAmount))
	require.Len(t, q.Applied, 2)
}

func TestStackingIsMonotonic(t *testing.T) {
	t.Parallel()
	base := decimal.RequireFromString("1000")
	one := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountPercent, "10", true),
	}
	two := append([]promo.Resolved{
		resolved(promo.LevelProduct, promo.PriorityProduct, promo.DiscountPercent, "5", true),
	}, one...)

	withOne := BestPrice(base, one)
	withTwo := BestPrice(base, two)
	require.True(t, withTwo.FinalPrice.LessThanOrEqual(withOne.FinalPrice),
		"adding a stackable promotion must never raise the price")
}

func TestFixedDiscountClampsToPrice(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, promo.DiscountFixed, "250", false),
	}
	q := BestPrice(decimal.RequireFromString("100"), promos)
	require.Equal(t, "0.00", money.Format(q.FinalPrice))
	require.Equal(t, "100.00", money.Format(q.DiscountAmount))
}

func TestUnknownDiscountTypeIgnored(t *testing.T) {
	t.Parallel()
	promos := []promo.Resolved{
		resolved(promo.LevelVariant, promo.PriorityVariant, "BOGOF", "1", false),
	}
	q := BestPrice(decimal.RequireFromString("100"), promos)
	require.Equal(t, "100.00", money.Format(q.FinalPrice))
	require.Empty(t, q.Applied)
}
