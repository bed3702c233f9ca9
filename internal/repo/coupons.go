package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getCouponByCode = `
SELECT id, code, discount_type, discount_value::text, min_cart_total::text,
       expires_at, usage_limit, used_count, is_active
FROM coupons
WHERE LOWER(code) = LOWER($1)
`

// GetCouponByCode looks a coupon up by its case-insensitive code.
func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponByCode, code))
}

const getCouponByID = `
SELECT id, code, discount_type, discount_value::text, min_cart_total::text,
       expires_at, usage_limit, used_count, is_active
FROM coupons
WHERE id = $1
`

// GetCouponByID loads a coupon by primary key.
func (q *Queries) GetCouponByID(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponByID, id))
}

const incrementCouponUsage = `
UPDATE coupons
SET used_count = used_count + 1
WHERE id = $1
  AND is_active
  AND (expires_at IS NULL OR expires_at > $2)
  AND (usage_limit IS NULL OR used_count < usage_limit)
`

// IncrementCouponUsage bumps used_count with all validity conditions encoded
// in the WHERE clause. Zero rows affected means a concurrent checkout consumed
// the remaining allowance and the caller must abort.
func (q *Queries) IncrementCouponUsage(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, incrementCouponUsage, id, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCoupon(row rowScanner) (Coupon, error) {
	var (
		c        Coupon
		value    string
		minTotal *string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &value, &minTotal,
		&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.IsActive); err != nil {
		return Coupon{}, err
	}
	parsed, err := parseDecimal(value)
	if err != nil {
		return Coupon{}, err
	}
	c.DiscountValue = parsed
	min, err := parseNullDecimal(minTotal)
	if err != nil {
		return Coupon{}, err
	}
	c.MinCartTotal = min
	return c, nil
}
