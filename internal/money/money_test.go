package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/money"
)

func TestFormatFixedTwoDecimals(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1000.00", money.Format(money.FromInt(1000)))
	require.Equal(t, "0.10", money.Format(money.MustParse("0.1")))
	require.Equal(t, "99.99", money.Format(money.MustParse("99.994")))
	require.Equal(t, "100.00", money.Format(money.MustParse("99.995")))
}

func TestPercentKeepsFullPrecision(t *testing.T) {
	t.Parallel()

	// 33.333...% of 1 is not representable in two decimals; rounding happens
	// only at the output boundary.
	p := money.Percent(money.FromInt(1000), money.MustParse("12.5"))
	require.True(t, p.Equal(money.MustParse("125")))

	p = money.Percent(money.MustParse("0.05"), money.FromInt(10))
	require.Equal(t, "0.01", money.Format(p))
}

func TestClampAndMin(t *testing.T) {
	t.Parallel()

	require.True(t, money.ClampNonNegative(money.MustParse("-3")).IsZero())
	require.True(t, money.Min(money.FromInt(2), money.FromInt(5)).Equal(decimal.NewFromInt(2)))
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := money.Parse("12,50")
	require.Error(t, err)
}
