package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderParams captures the full pricing breakdown and address snapshots
// written at checkout.
type CreateOrderParams struct {
	UserID          uuid.UUID
	Status          string
	Currency        string
	Subtotal        decimal.Decimal
	DiscountPct     decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingMethod  string
	ShippingAmount  decimal.Decimal
	Total           decimal.Decimal
	CouponID        *uuid.UUID
	ShippingAddress []byte
	BillingAddress  []byte
}

const createOrder = `
INSERT INTO orders (
	user_id, status, currency, subtotal, discount_pct, discount_amount,
	tax_rate, tax_amount, shipping_method, shipping_amount, total,
	coupon_id, shipping_address, billing_address
) VALUES (
	$1, $2, $3, $4::numeric, $5::numeric, $6::numeric,
	$7::numeric, $8::numeric, $9, $10::numeric, $11::numeric,
	$12, $13, $14
)
RETURNING id, created_at
`

// CreateOrder inserts the immutable order snapshot.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	o := Order{
		UserID:          arg.UserID,
		Status:          arg.Status,
		Currency:        arg.Currency,
		Subtotal:        arg.Subtotal,
		DiscountPct:     arg.DiscountPct,
		DiscountAmount:  arg.DiscountAmount,
		TaxRate:         arg.TaxRate,
		TaxAmount:       arg.TaxAmount,
		ShippingMethod:  arg.ShippingMethod,
		ShippingAmount:  arg.ShippingAmount,
		Total:           arg.Total,
		CouponID:        arg.CouponID,
		ShippingAddress: arg.ShippingAddress,
		BillingAddress:  arg.BillingAddress,
	}
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID, arg.Status, arg.Currency,
		arg.Subtotal.String(), arg.DiscountPct.String(), arg.DiscountAmount.String(),
		arg.TaxRate.String(), arg.TaxAmount.String(), arg.ShippingMethod,
		arg.ShippingAmount.String(), arg.Total.String(),
		arg.CouponID, arg.ShippingAddress, arg.BillingAddress)
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	return o, nil
}

// CreateOrderItemParams is one order line priced as charged.
type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	VariantID uuid.UUID
	Name      string
	SKU       string
	Qty       int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

const createOrderItem = `
INSERT INTO order_items (order_id, variant_id, name, sku, qty, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
`

// CreateOrderItem inserts one order line.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItem,
		arg.OrderID, arg.VariantID, arg.Name, arg.SKU, arg.Qty,
		arg.UnitPrice.String(), arg.LineTotal.String())
	return err
}

const getOrderForUser = `
SELECT id, user_id, status, currency, subtotal::text, discount_pct::text,
       discount_amount::text, tax_rate::text, tax_amount::text, shipping_method,
       shipping_amount::text, total::text, coupon_id, shipping_address,
       billing_address, created_at
FROM orders
WHERE id = $1 AND user_id = $2
`

// GetOrderForUser loads an order scoped to its owner.
func (q *Queries) GetOrderForUser(ctx context.Context, id, userID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUser, id, userID))
}

const getOrderByID = `
SELECT id, user_id, status, currency, subtotal::text, discount_pct::text,
       discount_amount::text, tax_rate::text, tax_amount::text, shipping_method,
       shipping_amount::text, total::text, coupon_id, shipping_address,
       billing_address, created_at
FROM orders
WHERE id = $1
`

// GetOrderByID loads an order without an ownership scope, for admin flows.
func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const listOrdersForUser = `
SELECT id, user_id, status, currency, subtotal::text, discount_pct::text,
       discount_amount::text, tax_rate::text, tax_amount::text, shipping_method,
       shipping_amount::text, total::text, coupon_id, shipping_address,
       billing_address, created_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

// ListOrdersForUser returns the user's orders newest first.
func (q *Queries) ListOrdersForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersForUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const countOrdersForUser = `
SELECT COUNT(*) FROM orders WHERE user_id = $1
`

// CountOrdersForUser returns the number of orders the user owns.
func (q *Queries) CountOrdersForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countOrdersForUser, userID).Scan(&total)
	return total, err
}

const listOrderItems = `
SELECT id, order_id, variant_id, name, sku, qty, unit_price::text, line_total::text
FROM order_items
WHERE order_id = $1
ORDER BY created_at
`

// ListOrderItems returns the lines of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var (
			it              OrderItem
			unit, lineTotal string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Name, &it.SKU,
			&it.Qty, &unit, &lineTotal); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = parseDecimal(unit); err != nil {
			return nil, err
		}
		if it.LineTotal, err = parseDecimal(lineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const transitionOrderStatus = `
UPDATE orders
SET status = $3
WHERE id = $1 AND status = $2
`

// TransitionOrderStatus moves an order from one status to another. The guard
// on the current status makes concurrent transitions mutually exclusive; zero
// rows affected means the order moved under the caller's feet.
func (q *Queries) TransitionOrderStatus(ctx context.Context, id uuid.UUID, from, to string) (int64, error) {
	tag, err := q.db.Exec(ctx, transitionOrderStatus, id, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createRefund = `
INSERT INTO refunds (order_id, amount, status)
VALUES ($1, $2::numeric, 'PENDING')
RETURNING id
`

// CreateRefund records a PENDING refund for a cancelled paid order.
func (q *Queries) CreateRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, createRefund, orderID, amount.String()).Scan(&id)
	return id, err
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                                              Order
		subtotal, discountPct, discountAmount, taxRate string
		taxAmount, shippingAmount, total               string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency, &subtotal, &discountPct,
		&discountAmount, &taxRate, &taxAmount, &o.ShippingMethod, &shippingAmount,
		&total, &o.CouponID, &o.ShippingAddress, &o.BillingAddress, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	var err error
	if o.Subtotal, err = parseDecimal(subtotal); err != nil {
		return Order{}, err
	}
	if o.DiscountPct, err = parseDecimal(discountPct); err != nil {
		return Order{}, err
	}
	if o.DiscountAmount, err = parseDecimal(discountAmount); err != nil {
		return Order{}, err
	}
	if o.TaxRate, err = parseDecimal(taxRate); err != nil {
		return Order{}, err
	}
	if o.TaxAmount, err = parseDecimal(taxAmount); err != nil {
		return Order{}, err
	}
	if o.ShippingAmount, err = parseDecimal(shippingAmount); err != nil {
		return Order{}, err
	}
	if o.Total, err = parseDecimal(total); err != nil {
		return Order{}, err
	}
	return o, nil
}
