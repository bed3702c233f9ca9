package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getVariantCatalog = `
SELECT v.id, v.sku, v.name, v.price::text, v.promotion_id, v.deleted_at,
       p.id, p.is_active, p.deleted_at, p.category_id
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`

// GetVariantCatalog loads a variant together with its product and category
// references for pricing and validation.
func (q *Queries) GetVariantCatalog(ctx context.Context, variantID uuid.UUID) (VariantCatalog, error) {
	var (
		vc    VariantCatalog
		price string
	)
	row := q.db.QueryRow(ctx, getVariantCatalog, variantID)
	if err := row.Scan(
		&vc.VariantID, &vc.SKU, &vc.Name, &price, &vc.PromotionID, &vc.VariantDeletedAt,
		&vc.ProductID, &vc.ProductActive, &vc.ProductDeletedAt, &vc.CategoryID,
	); err != nil {
		return VariantCatalog{}, err
	}
	parsed, err := parseDecimal(price)
	if err != nil {
		return VariantCatalog{}, err
	}
	vc.Price = parsed
	return vc, nil
}

const getPromotionByID = `
SELECT id, name, discount_type, discount_value::text, starts_at, ends_at,
       applies_to, is_stackable, is_active
FROM promotions
WHERE id = $1
`

// GetPromotionByID loads a single promotion.
func (q *Queries) GetPromotionByID(ctx context.Context, id uuid.UUID) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, getPromotionByID, id))
}

const findActivePromotionsForProduct = `
SELECT pr.id, pr.name, pr.discount_type, pr.discount_value::text, pr.starts_at,
       pr.ends_at, pr.applies_to, pr.is_stackable, pr.is_active
FROM promotions pr
JOIN promotion_products pp ON pp.promotion_id = pr.id
WHERE pp.product_id = $1
  AND pr.applies_to = 'PRODUCT'
  AND pr.is_active
  AND pr.starts_at <= $2
  AND pr.ends_at >= $2
`

// FindActivePromotionsForProduct returns PRODUCT-scoped promotions covering
// the product that are active at the given instant.
func (q *Queries) FindActivePromotionsForProduct(ctx context.Context, productID uuid.UUID, now time.Time) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, findActivePromotionsForProduct, productID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPromotions(rows)
}

const findActivePromotionsForCategory = `
SELECT pr.id, pr.name, pr.discount_type, pr.discount_value::text, pr.starts_at,
       pr.ends_at, pr.applies_to, pr.is_stackable, pr.is_active
FROM promotions pr
JOIN promotion_categories pc ON pc.promotion_id = pr.id
WHERE pc.category_id = $1
  AND pr.applies_to = 'CATEGORY'
  AND pr.is_active
  AND pr.starts_at <= $2
  AND pr.ends_at >= $2
`

// FindActivePromotionsForCategory returns CATEGORY-scoped promotions covering
// the category that are active at the given instant.
func (q *Queries) FindActivePromotionsForCategory(ctx context.Context, categoryID uuid.UUID, now time.Time) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, findActivePromotionsForCategory, categoryID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPromotions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row rowScanner) (Promotion, error) {
	var (
		p     Promotion
		value string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.DiscountType, &value, &p.StartsAt, &p.EndsAt,
		&p.AppliesTo, &p.IsStackable, &p.IsActive); err != nil {
		return Promotion{}, err
	}
	parsed, err := parseDecimal(value)
	if err != nil {
		return Promotion{}, err
	}
	p.DiscountValue = parsed
	return p, nil
}

func collectPromotions(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]Promotion, error) {
	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
