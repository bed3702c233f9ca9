package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

var validate = validator.New()

// Handlers exposes checkout over HTTP.
type Handlers struct {
	Svc   *Service
	Locks *lock.Locker
	Log   zerolog.Logger
}

type checkoutRequest struct {
	ShippingAddressID string  `json:"shippingAddressId" validate:"required,uuid"`
	BillingAddressID  *string `json:"billingAddressId" validate:"omitempty,uuid"`
	ShippingMethod    string  `json:"shippingMethod" validate:"required,max=64"`
	CouponCode        string  `json:"couponCode" validate:"omitempty,max=64"`
}

type orderLineResponse struct {
	VariantID    string `json:"variantId"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Qty          int32  `json:"qty"`
	UnitPrice    string `json:"unitPrice"`
	UnitFinal    string `json:"unitFinal"`
	UnitDiscount string `json:"unitDiscount"`
	LineTotal    string `json:"lineTotal"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	Status           string              `json:"status"`
	Currency         string              `json:"currency"`
	Subtotal         string              `json:"subtotal"`
	PromotionSavings string              `json:"promotionSavings"`
	CouponCode       string              `json:"couponCode,omitempty"`
	DiscountAmount   string              `json:"discountAmount"`
	TaxRate          string              `json:"taxRate"`
	TaxAmount        string              `json:"taxAmount"`
	ShippingMethod   string              `json:"shippingMethod"`
	ShippingAmount   string              `json:"shippingAmount"`
	Total            string              `json:"total"`
	Items            []orderLineResponse `json:"items"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// Checkout handles POST /checkout. The route is wrapped by the idempotency
// middleware so a retried request replays the original response instead of
// placing a second order.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := uuid.Parse(uid)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}

	if h.Locks != nil {
		release, lockErr := h.Locks.Acquire(r.Context(), "checkout:user:"+userID.String())
		switch {
		case errors.Is(lockErr, lock.ErrHeld):
			common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout for this user is already in flight", nil)
			return
		case lockErr != nil:
			// Redis being down should not block order placement; the
			// transaction still guards inventory.
			h.Log.Warn().Err(lockErr).Msg("checkout lock unavailable")
		default:
			defer release()
		}
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid request body", err.Error())
		return
	}

	in := Input{ShippingMethod: req.ShippingMethod, CouponCode: req.CouponCode}
	if in.ShippingAddressID, err = uuid.Parse(req.ShippingAddressID); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid shippingAddressId", nil)
		return
	}
	if req.BillingAddressID != nil {
		billID, err := uuid.Parse(*req.BillingAddressID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid billingAddressId", nil)
			return
		}
		in.BillingAddressID = &billID
	}

	start := time.Now()
	conf, err := h.Svc.Checkout(r.Context(), userID, in)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		result := "error"
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			result = strings.ToLower(appErr.Code)
		}
		obs.ObserveCheckout(result, elapsed)
		h.writeError(w, err)
		return
	}
	obs.ObserveCheckout("success", elapsed)
	common.JSON(w, http.StatusCreated, map[string]any{"data": toOrderResponse(conf)})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	h.Log.Error().Err(err).Msg("checkout failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func toOrderResponse(conf Confirmation) orderResponse {
	res := orderResponse{
		ID:               conf.Order.ID.String(),
		Status:           conf.Order.Status,
		Currency:         conf.Order.Currency,
		Subtotal:         money.Format(conf.Order.Subtotal),
		PromotionSavings: money.Format(conf.Pricing.PromotionSavings),
		CouponCode:       conf.Pricing.CouponCode,
		DiscountAmount:   money.Format(conf.Order.DiscountAmount),
		TaxRate:          conf.Order.TaxRate.String(),
		TaxAmount:        money.Format(conf.Order.TaxAmount),
		ShippingMethod:   conf.Order.ShippingMethod,
		ShippingAmount:   money.Format(conf.Order.ShippingAmount),
		Total:            money.Format(conf.Order.Total),
		Items:            toOrderLines(conf.Pricing.Lines),
		CreatedAt:        conf.Order.CreatedAt,
	}
	return res
}

func toOrderLines(lines []pricing.LineResult) []orderLineResponse {
	out := make([]orderLineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, orderLineResponse{
			VariantID:    line.VariantID.String(),
			SKU:          line.SKU,
			Name:         line.Name,
			Qty:          line.Qty,
			UnitPrice:    money.Format(line.UnitPrice),
			UnitFinal:    money.Format(line.UnitFinal),
			UnitDiscount: money.Format(line.UnitDiscount),
			LineTotal:    money.Format(line.LineTotal),
		})
	}
	return out
}
