package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/storefront",
		"REDIS_URL":    "redis://localhost:6379/0",
		"PORT":         "",
		"CURRENCY":     "",
		"TAX_RATE":     "",
	})
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "USD", cfg.Currency)
	require.True(t, cfg.TaxRate.IsZero())
	require.Equal(t, 10*time.Second, cfg.CheckoutTimeout)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 10, cfg.CheckoutRateMax)
	require.Equal(t, time.Minute, cfg.CheckoutRateWindow)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost/storefront",
		"REDIS_URL":        "redis://localhost:6379/0",
		"CURRENCY":         "eur",
		"TAX_RATE":         "0.08",
		"CHECKOUT_TIMEOUT": "3s",
	})
	require.NoError(t, err)
	require.Equal(t, "EUR", cfg.Currency)
	require.Equal(t, "0.08", cfg.TaxRate.String())
	require.Equal(t, 3*time.Second, cfg.CheckoutTimeout)
}

func TestLoadRejectsBadTaxRate(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/storefront",
		"REDIS_URL":    "redis://localhost:6379/0",
		"TAX_RATE":     "1.5",
	})
	require.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}
