package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantCatalog joins a variant with its product and category for pricing.
type VariantCatalog struct {
	VariantID        uuid.UUID
	SKU              string
	Name             string
	Price            decimal.Decimal
	PromotionID      *uuid.UUID
	VariantDeletedAt *time.Time
	ProductID        uuid.UUID
	ProductActive    bool
	ProductDeletedAt *time.Time
	CategoryID       *uuid.UUID
}

// Promotion is a stored discount rule scoped to a variant, product, category
// or the whole cart.
type Promotion struct {
	ID            uuid.UUID
	Name          string
	DiscountType  string
	DiscountValue decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	AppliesTo     string
	IsStackable   bool
	IsActive      bool
}

// Coupon is a cart-level discount code.
type Coupon struct {
	ID            uuid.UUID
	Code          string
	DiscountType  string
	DiscountValue decimal.Decimal
	MinCartTotal  *decimal.Decimal
	ExpiresAt     *time.Time
	UsageLimit    *int32
	UsedCount     int32
	IsActive      bool
}

// Cart is a user's shopping cart. One ACTIVE cart per user is enforced by a
// partial unique index on (user_id) WHERE status = 'ACTIVE'.
type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Status    string
	CouponID  *uuid.UUID
	UpdatedAt time.Time
}

// CartItem is a cart line with its price and naming snapshot. The snapshot is
// display-only; pricing always recomputes against the live catalog.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	VariantID uuid.UUID
	Qty       int32
	UnitPrice decimal.Decimal
	Name      string
	SKU       string
}

// Inventory tracks per-variant stock. available = quantity - reserved.
type Inventory struct {
	VariantID uuid.UUID
	Quantity  int32
	Reserved  int32
}

// Address is a stored user address.
type Address struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FullName   string
	Phone      string
	Country    string
	State      string
	City       string
	PostalCode string
	Line1      string
	Line2      string
}

// ShippingRate is a flat rate for a country (optionally a state) and method.
type ShippingRate struct {
	ID       uuid.UUID
	Country  string
	State    *string
	Method   string
	Price    decimal.Decimal
	Currency string
	MinOrder *decimal.Decimal
	MaxOrder *decimal.Decimal
}

// Order is the immutable snapshot written at checkout. Only Status and the
// refund back-reference ever change afterwards.
type Order struct {
	ID              uuid.UUID
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
	CreatedAt       time.Time
}

// OrderItem is a line of an order priced as charged.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	VariantID uuid.UUID
	Name      string
	SKU       string
	Qty       int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Refund is created PENDING when a paid order is cancelled.
type Refund struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Status  string
}

// DomainEvent is an emitted event persisted alongside the state change.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}
