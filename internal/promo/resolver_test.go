package promo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/repo"
)

type fakePromoStore struct {
	variants       map[uuid.UUID]repo.VariantCatalog
	promotions     map[uuid.UUID]repo.Promotion
	productPromos  map[uuid.UUID][]repo.Promotion
	categoryPromos map[uuid.UUID][]repo.Promotion
}

func (f *fakePromoStore) GetVariantCatalog(_ context.Context, variantID uuid.UUID) (repo.VariantCatalog, error) {
	vc, ok := f.variants[variantID]
	if !ok {
		return repo.VariantCatalog{}, pgx.ErrNoRows
	}
	return vc, nil
}

func (f *fakePromoStore) GetPromotionByID(_ context.Context, id uuid.UUID) (repo.Promotion, error) {
	p, ok := f.promotions[id]
	if !ok {
		return repo.Promotion{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePromoStore) FindActivePromotionsForProduct(_ context.Context, productID uuid.UUID, _ time.Time) ([]repo.Promotion, error) {
	return f.productPromos[productID], nil
}

func (f *fakePromoStore) FindActivePromotionsForCategory(_ context.Context, categoryID uuid.UUID, _ time.Time) ([]repo.Promotion, error) {
	return f.categoryPromos[categoryID], nil
}

func promotion(name string, starts, ends time.Time, active bool) repo.Promotion {
	return repo.Promotion{
		ID: uuid.New(), Name: name, DiscountType: DiscountPercent,
		DiscountValue: decimal.RequireFromString("10"),
		StartsAt:      starts, EndsAt: ends, IsActive: active,
	}
}

func TestResolveCollectsAllLevels(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	starts, ends := now.Add(-time.Hour), now.Add(time.Hour)

	variantID := uuid.New()
	productID := uuid.New()
	categoryID := uuid.New()
	attached := promotion("Variant Deal", starts, ends, true)

	store := &fakePromoStore{
		variants: map[uuid.UUID]repo.VariantCatalog{
			variantID: {
				VariantID: variantID, ProductID: productID, CategoryID: &categoryID,
				PromotionID: &attached.ID, ProductActive: true,
			},
		},
		promotions: map[uuid.UUID]repo.Promotion{attached.ID: attached},
		productPromos: map[uuid.UUID][]repo.Promotion{
			productID: {promotion("Product Deal", starts, ends, true)},
		},
		categoryPromos: map[uuid.UUID][]repo.Promotion{
			categoryID: {promotion("Category Deal", starts, ends, true)},
		},
	}
	r := &Resolver{Catalog: store, Store: store, Now: func() time.Time { return now }}

	out, err := r.Resolve(context.Background(), variantID)
	require.NoError(t, err)
	require.Len(t, out, 3)

	byLevel := map[string]int{}
	for _, p := range out {
		byLevel[p.Level] = p.Priority
	}
	require.Equal(t, PriorityVariant, byLevel[LevelVariant])
	require.Equal(t, PriorityProduct, byLevel[LevelProduct])
	require.Equal(t, PriorityCategory, byLevel[LevelCategory])
}

func TestResolveFiltersInactiveWindows(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	variantID := uuid.New()
	productID := uuid.New()
	ended := promotion("Ended", now.Add(-2*time.Hour), now.Add(-time.Hour), true)
	future := promotion("Future", now.Add(time.Hour), now.Add(2*time.Hour), true)
	disabled := promotion("Disabled", now.Add(-time.Hour), now.Add(time.Hour), false)

	store := &fakePromoStore{
		variants: map[uuid.UUID]repo.VariantCatalog{
			variantID: {VariantID: variantID, ProductID: productID, ProductActive: true},
		},
		promotions: map[uuid.UUID]repo.Promotion{},
		productPromos: map[uuid.UUID][]repo.Promotion{
			productID: {ended, future, disabled},
		},
		categoryPromos: map[uuid.UUID][]repo.Promotion{},
	}
	r := &Resolver{Catalog: store, Store: store, Now: func() time.Time { return now }}

	out, err := r.Resolve(context.Background(), variantID)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestResolveWindowIsInclusive(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := promotion("Edge", now, now, true)
	require.True(t, Active(p, now))
	require.False(t, Active(p, now.Add(time.Nanosecond)))
	require.False(t, Active(p, now.Add(-time.Nanosecond)))
}

func TestResolveUnknownVariant(t *testing.T) {
	t.Parallel()
	store := &fakePromoStore{
		variants:       map[uuid.UUID]repo.VariantCatalog{},
		promotions:     map[uuid.UUID]repo.Promotion{},
		productPromos:  map[uuid.UUID][]repo.Promotion{},
		categoryPromos: map[uuid.UUID][]repo.Promotion{},
	}
	r := &Resolver{Catalog: store, Store: store}

	_, err := r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestResolveSkipsDanglingAttachedPromotion(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	variantID := uuid.New()
	missing := uuid.New()
	store := &fakePromoStore{
		variants: map[uuid.UUID]repo.VariantCatalog{
			variantID: {VariantID: variantID, ProductID: uuid.New(), PromotionID: &missing, ProductActive: true},
		},
		promotions:     map[uuid.UUID]repo.Promotion{},
		productPromos:  map[uuid.UUID][]repo.Promotion{},
		categoryPromos: map[uuid.UUID][]repo.Promotion{},
	}
	r := &Resolver{Catalog: store, Store: store, Now: func() time.Time { return now }}

	out, err := r.Resolve(context.Background(), variantID)
	require.NoError(t, err)
	require.Empty(t, out)
}
