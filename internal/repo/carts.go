package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const getActiveCartByUser = `
SELECT id, user_id, status, coupon_id, updated_at
FROM carts
WHERE user_id = $1 AND status = 'ACTIVE'
`

// GetActiveCartByUser returns the user's single ACTIVE cart. The partial
// unique index guarantees at most one row.
func (q *Queries) GetActiveCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	var c Cart
	row := q.db.QueryRow(ctx, getActiveCartByUser, userID)
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.CouponID, &c.UpdatedAt)
	return c, err
}

const createCart = `
INSERT INTO carts (user_id, status)
VALUES ($1, 'ACTIVE')
RETURNING id, user_id, status, coupon_id, updated_at
`

// CreateCart opens a fresh ACTIVE cart for the user.
func (q *Queries) CreateCart(ctx context.Context, userID uuid.UUID) (Cart, error) {
	var c Cart
	row := q.db.QueryRow(ctx, createCart, userID)
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.CouponID, &c.UpdatedAt)
	return c, err
}

const listCartItems = `
SELECT id, cart_id, variant_id, qty, unit_price::text, name, sku
FROM cart_items
WHERE cart_id = $1
ORDER BY created_at
`

// ListCartItems returns all lines of a cart in insertion order.
func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		var (
			it    CartItem
			price string
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty, &price, &it.Name, &it.SKU); err != nil {
			return nil, err
		}
		parsed, err := parseDecimal(price)
		if err != nil {
			return nil, err
		}
		it.UnitPrice = parsed
		out = append(out, it)
	}
	return out, rows.Err()
}

const findCartItemByVariant = `
SELECT id, cart_id, variant_id, qty, unit_price::text, name, sku
FROM cart_items
WHERE cart_id = $1 AND variant_id = $2
`

// FindCartItemByVariant locates an existing line for the variant, if any.
func (q *Queries) FindCartItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (CartItem, error) {
	var (
		it    CartItem
		price string
	)
	row := q.db.QueryRow(ctx, findCartItemByVariant, cartID, variantID)
	if err := row.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty, &price, &it.Name, &it.SKU); err != nil {
		return CartItem{}, err
	}
	parsed, err := parseDecimal(price)
	if err != nil {
		return CartItem{}, err
	}
	it.UnitPrice = parsed
	return it, nil
}

const createCartItem = `
INSERT INTO cart_items (cart_id, variant_id, qty, unit_price, name, sku)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
RETURNING id
`

// CreateCartItemParams captures a new cart line with its display snapshot.
type CreateCartItemParams struct {
	CartID    uuid.UUID
	VariantID uuid.UUID
	Qty       int32
	UnitPrice decimal.Decimal
	Name      string
	SKU       string
}

// CreateCartItem inserts a new cart line.
func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	row := q.db.QueryRow(ctx, createCartItem,
		arg.CartID, arg.VariantID, arg.Qty, arg.UnitPrice.String(), arg.Name, arg.SKU)
	err := row.Scan(&id)
	return id, err
}

const updateCartItemQty = `
UPDATE cart_items SET qty = $2 WHERE id = $1
`

// UpdateCartItemQty sets the quantity of a cart line.
func (q *Queries) UpdateCartItemQty(ctx context.Context, itemID uuid.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, updateCartItemQty, itemID, qty)
	return err
}

const getCartItemByID = `
SELECT id, cart_id, variant_id, qty, unit_price::text, name, sku
FROM cart_items
WHERE id = $1
`

// GetCartItemByID loads a single cart line.
func (q *Queries) GetCartItemByID(ctx context.Context, itemID uuid.UUID) (CartItem, error) {
	var (
		it    CartItem
		price string
	)
	row := q.db.QueryRow(ctx, getCartItemByID, itemID)
	if err := row.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty, &price, &it.Name, &it.SKU); err != nil {
		return CartItem{}, err
	}
	parsed, err := parseDecimal(price)
	if err != nil {
		return CartItem{}, err
	}
	it.UnitPrice = parsed
	return it, nil
}

const deleteCartItem = `
DELETE FROM cart_items WHERE id = $1 AND cart_id = $2
`

// DeleteCartItem removes a single line from the cart.
func (q *Queries) DeleteCartItem(ctx context.Context, itemID, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCartItem, itemID, cartID)
	return err
}

const deleteCartItems = `
DELETE FROM cart_items WHERE cart_id = $1
`

// DeleteCartItems clears every line of the cart.
func (q *Queries) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCartItems, cartID)
	return err
}

const setCartCoupon = `
UPDATE carts SET coupon_id = $2, updated_at = now() WHERE id = $1
`

// SetCartCoupon attaches (or with nil detaches) a coupon reference.
func (q *Queries) SetCartCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	_, err := q.db.Exec(ctx, setCartCoupon, cartID, couponID)
	return err
}

const markCartCheckedOut = `
UPDATE carts SET status = 'CHECKED_OUT', updated_at = now()
WHERE id = $1 AND status = 'ACTIVE'
`

// MarkCartCheckedOut flips the cart to its terminal state. The status guard in
// the WHERE clause loses the race when another checkout already claimed the
// cart; callers treat zero rows affected as an abort signal.
func (q *Queries) MarkCartCheckedOut(ctx context.Context, cartID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markCartCheckedOut, cartID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
