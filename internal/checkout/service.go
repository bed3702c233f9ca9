// Package checkout converts an ACTIVE cart into an immutable order inside a
// single database transaction. Pricing happens in the same transaction that
// writes the order, so the amount charged is the amount quoted against the
// catalog state the writes committed with.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/audit"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/promo"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/shipping"
)

// Store is the slice of the repository the checkout transaction touches. The
// conditional writes (ReserveInventory, IncrementCouponUsage,
// MarkCartCheckedOut) return rows affected; zero means another transaction
// won the race and this checkout must abort.
type Store interface {
	promo.Catalog
	promo.Store

	GetActiveCartByUser(ctx context.Context, userID uuid.UUID) (repo.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]repo.CartItem, error)
	GetInventory(ctx context.Context, variantID uuid.UUID) (repo.Inventory, error)
	GetAddressForUser(ctx context.Context, id, userID uuid.UUID) (repo.Address, error)
	FindShippingRate(ctx context.Context, country, state, method string) (repo.ShippingRate, error)
	GetCouponByCode(ctx context.Context, code string) (repo.Coupon, error)
	GetCouponByID(ctx context.Context, id uuid.UUID) (repo.Coupon, error)

	CreateOrder(ctx context.Context, arg repo.CreateOrderParams) (repo.Order, error)
	CreateOrderItem(ctx context.Context, arg repo.CreateOrderItemParams) error
	ReserveInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error)
	IncrementCouponUsage(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	MarkCartCheckedOut(ctx context.Context, cartID uuid.UUID) (int64, error)
	DeleteCartItems(ctx context.Context, cartID uuid.UUID) error
	InsertAuditLog(ctx context.Context, arg repo.InsertAuditLogParams) (uuid.UUID, error)
}

// Runner executes the checkout body inside one transaction. Production wires
// PGRunner; tests substitute an in-memory runner to assert atomicity.
type Runner interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// PGRunner runs checkout transactions over pgx.
type PGRunner struct {
	Queries *repo.Queries
}

// WithinTx implements Runner on top of the repository's transaction helper.
func (r PGRunner) WithinTx(ctx context.Context, fn func(Store) error) error {
	return r.Queries.WithinTx(ctx, func(q *repo.Queries) error {
		return fn(q)
	})
}

// Input is the caller's checkout request.
type Input struct {
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
	ShippingMethod    string
	CouponCode        string
}

// Confirmation is the committed order together with its priced breakdown.
type Confirmation struct {
	Order   repo.Order
	Pricing pricing.Result
}

// AddressSnapshot is the address copy embedded in the order row. Orders keep
// their own copy so later address edits cannot rewrite history.
type AddressSnapshot struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Country    string `json:"country"`
	State      string `json:"state,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
}

// Service orchestrates checkout.
type Service struct {
	Runner   Runner
	Events   *events.Bus
	Log      zerolog.Logger
	TaxRate  decimal.Decimal
	Currency string
	Timeout  time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Checkout runs the full cart-to-order conversion. Every validation, the
// pricing pass and every write share one transaction; any failure rolls the
// whole attempt back and leaves cart, inventory and coupon untouched.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, in Input) (Confirmation, error) {
	if s == nil || s.Runner == nil {
		return Confirmation{}, errors.New("checkout: service not configured")
	}
	if userID == uuid.Nil {
		return Confirmation{}, common.NewAppError(CodeValidation, "user is required", http.StatusUnauthorized, nil)
	}
	if in.ShippingAddressID == uuid.Nil {
		return Confirmation{}, common.NewAppError(CodeValidation, "shippingAddressId is required", http.StatusBadRequest, nil)
	}
	in.ShippingMethod = strings.TrimSpace(in.ShippingMethod)
	if in.ShippingMethod == "" {
		return Confirmation{}, common.NewAppError(CodeValidation, "shippingMethod is required", http.StatusBadRequest, nil)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	now := s.now()

	var conf Confirmation
	err := s.Runner.WithinTx(ctx, func(tx Store) error {
		c, err := s.run(ctx, tx, userID, in, now)
		if err != nil {
			return err
		}
		conf = c
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Confirmation{}, common.NewAppError(CodeTimeout, "checkout timed out, no order was placed", http.StatusServiceUnavailable, err)
		}
		return Confirmation{}, err
	}

	s.emitCreated(ctx, conf.Order)
	return conf, nil
}

func (s *Service) run(ctx context.Context, tx Store, userID uuid.UUID, in Input, now time.Time) (Confirmation, error) {
	cart, err := tx.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Confirmation{}, businessErr(CodeEmptyCart, "cart is empty")
		}
		return Confirmation{}, fmt.Errorf("checkout: load cart: %w", err)
	}
	items, err := tx.ListCartItems(ctx, cart.ID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("checkout: load cart items: %w", err)
	}
	if len(items) == 0 {
		return Confirmation{}, businessErr(CodeEmptyCart, "cart is empty")
	}

	if err := s.checkAvailability(ctx, tx, items); err != nil {
		return Confirmation{}, err
	}

	shipTo, err := tx.GetAddressForUser(ctx, in.ShippingAddressID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Confirmation{}, businessErr(CodeAddressNotFound, "shipping address not found")
		}
		return Confirmation{}, fmt.Errorf("checkout: load shipping address: %w", err)
	}
	billTo := shipTo
	if in.BillingAddressID != nil && *in.BillingAddressID != in.ShippingAddressID {
		billTo, err = tx.GetAddressForUser(ctx, *in.BillingAddressID, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Confirmation{}, businessErr(CodeAddressNotFound, "billing address not found")
			}
			return Confirmation{}, fmt.Errorf("checkout: load billing address: %w", err)
		}
	}

	shipSvc := &shipping.Service{Store: tx}
	rate, err := shipSvc.FindRate(ctx, shipTo.Country, shipTo.State, in.ShippingMethod)
	if err != nil {
		if errors.Is(err, shipping.ErrNoRate) {
			return Confirmation{}, businessErr(CodeNoShippingRate, "no shipping rate for destination")
		}
		return Confirmation{}, fmt.Errorf("checkout: resolve shipping rate: %w", err)
	}

	rule, err := s.resolveCoupon(ctx, tx, cart, in.CouponCode, now)
	if err != nil {
		return Confirmation{}, err
	}

	clock := func() time.Time { return now }
	agg := &pricing.Aggregator{
		Catalog:  tx,
		Resolver: &promo.Resolver{Catalog: tx, Store: tx, Now: clock},
		Now:      clock,
	}
	quote := shipping.Quote(rate)
	priced, err := agg.PriceCart(ctx, cartLines(items), rule, &quote, s.TaxRate)
	if err != nil {
		return Confirmation{}, fmt.Errorf("checkout: price cart: %w", err)
	}

	if rule != nil {
		// Cart display skips an inapplicable coupon; checkout refuses to
		// silently charge more than the quote the user accepted.
		if err := rule.Validate(now, priced.Subtotal); err != nil {
			return Confirmation{}, couponErr(err)
		}
	}
	if !pricing.InBand(priced.Subtotal, quote.MinOrder, quote.MaxOrder) {
		return Confirmation{}, businessErr(CodeShippingBand, "cart total outside the shipping rate's order band")
	}

	for _, it := range items {
		affected, err := tx.ReserveInventory(ctx, it.VariantID, it.Qty)
		if err != nil {
			return Confirmation{}, fmt.Errorf("checkout: reserve %s: %w", it.SKU, err)
		}
		if affected == 0 {
			appErr := raceErr(CodeStockChanged, "stock changed during checkout")
			appErr.Details = []Shortfall{{
				VariantID: it.VariantID,
				SKU:       it.SKU,
				Requested: it.Qty,
				Reason:    "reserved by a concurrent checkout",
			}}
			return Confirmation{}, appErr
		}
	}

	if rule != nil && priced.CouponApplied {
		affected, err := tx.IncrementCouponUsage(ctx, rule.ID, now)
		if err != nil {
			return Confirmation{}, fmt.Errorf("checkout: increment coupon usage: %w", err)
		}
		if affected == 0 {
			return Confirmation{}, raceErr(CodeCouponLimitRace, "coupon exhausted during checkout")
		}
	}

	ord, err := s.writeOrder(ctx, tx, userID, priced, rule, shipTo, billTo)
	if err != nil {
		return Confirmation{}, err
	}

	affected, err := tx.MarkCartCheckedOut(ctx, cart.ID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("checkout: mark cart checked out: %w", err)
	}
	if affected == 0 {
		return Confirmation{}, raceErr(CodeCartStateRace, "cart was checked out by a concurrent request")
	}
	if err := tx.DeleteCartItems(ctx, cart.ID); err != nil {
		return Confirmation{}, fmt.Errorf("checkout: clear cart items: %w", err)
	}

	if err := audit.RecordOrder(ctx, tx, "order.checkout", audit.ActorKindUser, userID, ord); err != nil {
		return Confirmation{}, fmt.Errorf("checkout: audit order: %w", err)
	}

	return Confirmation{Order: ord, Pricing: priced}, nil
}

// checkAvailability verifies every line before any write so the response can
// list all offending lines at once.
func (s *Service) checkAvailability(ctx context.Context, tx Store, items []repo.CartItem) error {
	var shortfalls []Shortfall
	for _, it := range items {
		vc, err := tx.GetVariantCatalog(ctx, it.VariantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				shortfalls = append(shortfalls, Shortfall{
					VariantID: it.VariantID, SKU: it.SKU, Requested: it.Qty,
					Reason: "variant no longer exists",
				})
				continue
			}
			return fmt.Errorf("checkout: load variant %s: %w", it.VariantID, err)
		}
		if vc.VariantDeletedAt != nil || vc.ProductDeletedAt != nil || !vc.ProductActive {
			shortfalls = append(shortfalls, Shortfall{
				VariantID: it.VariantID, SKU: vc.SKU, Requested: it.Qty,
				Reason: "variant no longer available",
			})
			continue
		}
		inv, err := tx.GetInventory(ctx, it.VariantID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("checkout: load inventory %s: %w", it.VariantID, err)
		}
		available := inv.Quantity - inv.Reserved
		if available < it.Qty {
			shortfalls = append(shortfalls, Shortfall{
				VariantID: it.VariantID, SKU: vc.SKU, Requested: it.Qty,
				Available: max(available, 0), Reason: "insufficient stock",
			})
		}
	}
	if len(shortfalls) > 0 {
		return inventoryErr(shortfalls)
	}
	return nil
}

// resolveCoupon loads the coupon for the attempt: an explicit code overrides
// the one attached to the cart. Subtotal-independent conditions are checked
// here; the minimum cart total is re-checked after pricing.
func (s *Service) resolveCoupon(ctx context.Context, tx Store, cart repo.Cart, code string, now time.Time) (*coupon.Rule, error) {
	code = strings.TrimSpace(code)
	var (
		c   repo.Coupon
		err error
	)
	switch {
	case code != "":
		c, err = tx.GetCouponByCode(ctx, code)
	case cart.CouponID != nil:
		c, err = tx.GetCouponByID(ctx, *cart.CouponID)
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, businessErr(CodeCouponNotFound, "coupon not found")
		}
		return nil, fmt.Errorf("checkout: load coupon: %w", err)
	}
	rule := coupon.RuleFromRepo(c)
	if err := rule.ValidateAt(now); err != nil {
		return nil, couponErr(err)
	}
	return &rule, nil
}

func (s *Service) writeOrder(ctx context.Context, tx Store, userID uuid.UUID, priced pricing.Result, rule *coupon.Rule, shipTo, billTo repo.Address) (repo.Order, error) {
	shipJSON, err := json.Marshal(snapshotAddress(shipTo))
	if err != nil {
		return repo.Order{}, fmt.Errorf("checkout: snapshot shipping address: %w", err)
	}
	billJSON, err := json.Marshal(snapshotAddress(billTo))
	if err != nil {
		return repo.Order{}, fmt.Errorf("checkout: snapshot billing address: %w", err)
	}

	discountPct := decimal.Zero
	var couponID *uuid.UUID
	if rule != nil && priced.CouponApplied {
		id := rule.ID
		couponID = &id
		if rule.DiscountType == coupon.DiscountPercent {
			discountPct = rule.DiscountValue
		}
	}

	ord, err := tx.CreateOrder(ctx, repo.CreateOrderParams{
		UserID:          userID,
		Status:          order.StatusPending,
		Currency:        s.Currency,
		Subtotal:        priced.Subtotal,
		DiscountPct:     discountPct,
		DiscountAmount:  priced.DiscountAmount,
		TaxRate:         priced.TaxRate,
		TaxAmount:       priced.TaxAmount,
		ShippingMethod:  priced.ShippingMethod,
		ShippingAmount:  priced.ShippingAmount,
		Total:           priced.Total,
		CouponID:        couponID,
		ShippingAddress: shipJSON,
		BillingAddress:  billJSON,
	})
	if err != nil {
		return repo.Order{}, fmt.Errorf("checkout: create order: %w", err)
	}
	for _, line := range priced.Lines {
		err := tx.CreateOrderItem(ctx, repo.CreateOrderItemParams{
			OrderID:   ord.ID,
			VariantID: line.VariantID,
			Name:      line.Name,
			SKU:       line.SKU,
			Qty:       line.Qty,
			UnitPrice: money.Round(line.UnitFinal),
			LineTotal: money.Round(line.LineTotal),
		})
		if err != nil {
			return repo.Order{}, fmt.Errorf("checkout: create order item %s: %w", line.SKU, err)
		}
	}
	return ord, nil
}

// emitCreated publishes order.created after the transaction committed. The
// order exists either way; a failed emit is logged, never surfaced.
func (s *Service) emitCreated(ctx context.Context, ord repo.Order) {
	if s.Events == nil {
		return
	}
	payload := map[string]string{
		"orderId":  ord.ID.String(),
		"userId":   ord.UserID.String(),
		"status":   ord.Status,
		"currency": ord.Currency,
		"total":    money.Format(ord.Total),
	}
	if _, err := s.Events.Emit(context.WithoutCancel(ctx), events.TopicOrderCreated, ord.ID, payload); err != nil {
		s.Log.Error().Err(err).Str("order_id", ord.ID.String()).Msg("emit order.created")
	}
}

func cartLines(items []repo.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{VariantID: it.VariantID, Qty: it.Qty})
	}
	return lines
}

func snapshotAddress(a repo.Address) AddressSnapshot {
	return AddressSnapshot{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Country:    a.Country,
		State:      a.State,
		City:       a.City,
		PostalCode: a.PostalCode,
		Line1:      a.Line1,
		Line2:      a.Line2,
	}
}
