// Package cart implements the shopping cart domain: one ACTIVE cart per
// user, line management with display snapshots, coupon attachment and live
// pricing through the shared aggregator.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrVariantUnavailable is returned when a variant cannot be sold.
var ErrVariantUnavailable = errors.New("variant unavailable")

// Store enumerates the repository operations the cart service depends on.
type Store interface {
	GetActiveCartByUser(ctx context.Context, userID uuid.UUID) (repo.Cart, error)
	CreateCart(ctx context.Context, userID uuid.UUID) (repo.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]repo.CartItem, error)
	FindCartItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (repo.CartItem, error)
	GetCartItemByID(ctx context.Context, itemID uuid.UUID) (repo.CartItem, error)
	CreateCartItem(ctx context.Context, arg repo.CreateCartItemParams) (uuid.UUID, error)
	UpdateCartItemQty(ctx context.Context, itemID uuid.UUID, qty int32) error
	DeleteCartItem(ctx context.Context, itemID, cartID uuid.UUID) error
	SetCartCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error
	GetVariantCatalog(ctx context.Context, variantID uuid.UUID) (repo.VariantCatalog, error)
	GetInventory(ctx context.Context, variantID uuid.UUID) (repo.Inventory, error)
	GetCouponByCode(ctx context.Context, code string) (repo.Coupon, error)
	GetCouponByID(ctx context.Context, id uuid.UUID) (repo.Coupon, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store   Store
	Pricer  *pricing.Aggregator
	TaxRate decimal.Decimal
	Now     func() time.Time

	// Cache holds the latest pricing result per cart. Writes are
	// best-effort: a cache failure never fails the request.
	Cache    *redis.Client
	CacheTTL time.Duration
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureActiveCart loads the user's ACTIVE cart, creating one when absent.
func (s *Service) EnsureActiveCart(ctx context.Context, userID uuid.UUID) (repo.Cart, error) {
	if s == nil || s.Store == nil {
		return repo.Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.Store.CreateCart(ctx, userID)
		}
		return repo.Cart{}, err
	}
	return c, nil
}

// AddItem inserts or increments a cart line. The stored unit price and
// name/sku are snapshots for display only; pricing recomputes from the
// catalog on every read.
func (s *Service) AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int32) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	vc, err := s.Store.GetVariantCatalog(ctx, variantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("variant not found: %w", ErrNotFound)
		}
		return err
	}
	if vc.VariantDeletedAt != nil || vc.ProductDeletedAt != nil || !vc.ProductActive {
		return fmt.Errorf("variant %s: %w", vc.SKU, ErrVariantUnavailable)
	}
	inv, err := s.Store.GetInventory(ctx, variantID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if inv.Quantity-inv.Reserved <= 0 {
		return fmt.Errorf("variant %s out of stock: %w", vc.SKU, ErrVariantUnavailable)
	}

	c, err := s.EnsureActiveCart(ctx, userID)
	if err != nil {
		return err
	}
	existing, err := s.Store.FindCartItemByVariant(ctx, c.ID, variantID)
	if err == nil {
		return s.Store.UpdateCartItemQty(ctx, existing.ID, existing.Qty+qty)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	_, err = s.Store.CreateCartItem(ctx, repo.CreateCartItemParams{
		CartID:    c.ID,
		VariantID: variantID,
		Qty:       qty,
		UnitPrice: money.Round(vc.Price),
		Name:      vc.Name,
		SKU:       vc.SKU,
	})
	return err
}

// UpdateQty sets the quantity of a line in the user's active cart.
func (s *Service) UpdateQty(ctx context.Context, userID, itemID uuid.UUID, qty int32) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	item, _, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.Store.UpdateCartItemQty(ctx, item.ID, qty)
}

// RemoveItem deletes a line from the user's active cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	item, c, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.Store.DeleteCartItem(ctx, item.ID, c.ID)
}

// ApplyCoupon validates the coupon against the current cart subtotal and
// attaches it. Validation here is strict; once attached, later drift is
// tolerated at display time and re-checked strictly at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (pricing.Result, error) {
	if s == nil || s.Store == nil {
		return pricing.Result{}, errors.New("cart service not configured")
	}
	if code == "" {
		return pricing.Result{}, fmt.Errorf("coupon code required: %w", ErrInvalidInput)
	}
	c, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Result{}, ErrNotFound
		}
		return pricing.Result{}, err
	}
	row, err := s.Store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Result{}, fmt.Errorf("coupon %q: %w", code, ErrNotFound)
		}
		return pricing.Result{}, err
	}
	rule := coupon.RuleFromRepo(row)

	items, err := s.Store.ListCartItems(ctx, c.ID)
	if err != nil {
		return pricing.Result{}, err
	}
	if len(items) == 0 {
		return pricing.Result{}, fmt.Errorf("cart empty: %w", ErrInvalidInput)
	}
	base, err := s.Pricer.PriceCart(ctx, toLines(items), nil, nil, s.TaxRate)
	if err != nil {
		return pricing.Result{}, err
	}
	if err := rule.Validate(s.now(), base.Subtotal); err != nil {
		return pricing.Result{}, err
	}
	if err := s.Store.SetCartCoupon(ctx, c.ID, &row.ID); err != nil {
		return pricing.Result{}, err
	}
	priced, err := s.Pricer.PriceCart(ctx, toLines(items), &rule, nil, s.TaxRate)
	if err != nil {
		return pricing.Result{}, err
	}
	s.cachePricing(ctx, c.ID, priced)
	return priced, nil
}

// RemoveCoupon detaches any coupon from the user's active cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return s.Store.SetCartCoupon(ctx, c.ID, nil)
}

// GetPricing prices the user's active cart against live catalog data. An
// attached coupon that no longer applies is silently skipped here; checkout
// is where that becomes an error.
func (s *Service) GetPricing(ctx context.Context, userID uuid.UUID, rate *pricing.RateQuote) (pricing.Result, error) {
	if s == nil || s.Store == nil {
		return pricing.Result{}, errors.New("cart service not configured")
	}
	c, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Result{}, ErrNotFound
		}
		return pricing.Result{}, err
	}
	items, err := s.Store.ListCartItems(ctx, c.ID)
	if err != nil {
		return pricing.Result{}, err
	}
	var rule *coupon.Rule
	if c.CouponID != nil {
		row, err := s.Store.GetCouponByID(ctx, *c.CouponID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return pricing.Result{}, err
		}
		if err == nil {
			r := coupon.RuleFromRepo(row)
			rule = &r
		}
	}
	res, err := s.Pricer.PriceCart(ctx, toLines(items), rule, rate, s.TaxRate)
	if err != nil {
		return pricing.Result{}, err
	}
	s.cachePricing(ctx, c.ID, res)
	return res, nil
}

// CouponRule resolves the rule currently attached to the cart, if any.
func (s *Service) CouponRule(ctx context.Context, c repo.Cart) (*coupon.Rule, error) {
	if c.CouponID == nil {
		return nil, nil
	}
	row, err := s.Store.GetCouponByID(ctx, *c.CouponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule := coupon.RuleFromRepo(row)
	return &rule, nil
}

func (s *Service) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (repo.CartItem, repo.Cart, error) {
	c, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.CartItem{}, repo.Cart{}, ErrNotFound
		}
		return repo.CartItem{}, repo.Cart{}, err
	}
	item, err := s.Store.GetCartItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.CartItem{}, repo.Cart{}, ErrNotFound
		}
		return repo.CartItem{}, repo.Cart{}, err
	}
	if item.CartID != c.ID {
		return repo.CartItem{}, repo.Cart{}, ErrNotFound
	}
	return item, c, nil
}

// cachePricing refreshes the cached totals for a cart. Failures are dropped:
// the response already computed does not depend on the cache.
func (s *Service) cachePricing(ctx context.Context, cartID uuid.UUID, res pricing.Result) {
	if s.Cache == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"subtotal": money.Format(res.Subtotal),
		"discount": money.Format(res.DiscountAmount),
		"tax":      money.Format(res.TaxAmount),
		"shipping": money.Format(res.ShippingAmount),
		"total":    money.Format(res.Total),
	})
	if err != nil {
		return
	}
	_ = s.Cache.Set(ctx, PricingCacheKey(cartID), payload, s.CacheTTL).Err()
}

// PricingCacheKey is the Redis key holding a cart's cached totals.
func PricingCacheKey(cartID uuid.UUID) string {
	return "cart:pricing:" + cartID.String()
}

func toLines(items []repo.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{VariantID: it.VariantID, Qty: it.Qty})
	}
	return lines
}
