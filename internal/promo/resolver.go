// Package promo resolves the set of active promotions that apply to a
// catalog variant. Persistence stays behind narrow repository interfaces so
// the resolution rules remain plain data-in data-out.
package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-api/internal/repo"
)

// Discount type discriminators shared by every promotion scope.
const (
	DiscountPercent = "PERCENT"
	DiscountFixed   = "FIXED"
)

// Promotion scope levels in priority order. Lower wins in best-single mode.
const (
	LevelVariant  = "VARIANT"
	LevelProduct  = "PRODUCT"
	LevelCategory = "CATEGORY"
	LevelCart     = "CART"
)

const (
	PriorityVariant  = 1
	PriorityProduct  = 2
	PriorityCategory = 3
)

// ErrVariantNotFound indicates the variant does not exist in the catalog.
var ErrVariantNotFound = errors.New("promo: variant not found")

// Resolved is a promotion annotated with the scope level it was matched at.
type Resolved struct {
	repo.Promotion
	Level    string
	Priority int
}

// Catalog provides the variant → product → category references.
type Catalog interface {
	GetVariantCatalog(ctx context.Context, variantID uuid.UUID) (repo.VariantCatalog, error)
}

// Store provides promotion lookups as plain rows.
type Store interface {
	GetPromotionByID(ctx context.Context, id uuid.UUID) (repo.Promotion, error)
	FindActivePromotionsForProduct(ctx context.Context, productID uuid.UUID, now time.Time) ([]repo.Promotion, error)
	FindActivePromotionsForCategory(ctx context.Context, categoryID uuid.UUID, now time.Time) ([]repo.Promotion, error)
}

// Resolver finds the currently-active promotions for a variant.
type Resolver struct {
	Catalog Catalog
	Store   Store
	Now     func() time.Time
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Active reports whether the promotion window covers the instant. The window
// is inclusive on both ends.
func Active(p repo.Promotion, now time.Time) bool {
	return p.IsActive && !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// Resolve returns every active promotion applying to the variant: its own
// attached promotion, PRODUCT promotions for its product and CATEGORY
// promotions for the product's category. The result is unordered; callers
// sort by priority. Activity is evaluated at call time, never cached.
func (r *Resolver) Resolve(ctx context.Context, variantID uuid.UUID) ([]Resolved, error) {
	return r.ResolveFor(ctx, variantID, nil)
}

// ResolveFor resolves promotions against pre-fetched catalog references when
// the caller already holds them, avoiding a second variant lookup inside a
// pricing pass.
func (r *Resolver) ResolveFor(ctx context.Context, variantID uuid.UUID, vc *repo.VariantCatalog) ([]Resolved, error) {
	if r == nil || r.Catalog == nil || r.Store == nil {
		return nil, errors.New("promo: resolver not configured")
	}
	if vc == nil {
		loaded, err := r.Catalog.GetVariantCatalog(ctx, variantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVariantNotFound
			}
			return nil, err
		}
		vc = &loaded
	}
	now := r.now()
	var out []Resolved

	if vc.PromotionID != nil {
		p, err := r.Store.GetPromotionByID(ctx, *vc.PromotionID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err == nil && Active(p, now) {
			out = append(out, Resolved{Promotion: p, Level: LevelVariant, Priority: PriorityVariant})
		}
	}

	productPromos, err := r.Store.FindActivePromotionsForProduct(ctx, vc.ProductID, now)
	if err != nil {
		return nil, err
	}
	for _, p := range productPromos {
		if Active(p, now) {
			out = append(out, Resolved{Promotion: p, Level: LevelProduct, Priority: PriorityProduct})
		}
	}

	if vc.CategoryID != nil {
		categoryPromos, err := r.Store.FindActivePromotionsForCategory(ctx, *vc.CategoryID, now)
		if err != nil {
			return nil, err
		}
		for _, p := range categoryPromos {
			if Active(p, now) {
				out = append(out, Resolved{Promotion: p, Level: LevelCategory, Priority: PriorityCategory})
			}
		}
	}
	return out, nil
}
