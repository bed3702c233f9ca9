package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/shipping"
)

var validate = validator.New()

// Handlers exposes cart management and pricing over HTTP.
type Handlers struct {
	Svc      *Service
	Shipping *shipping.Service
	Log      zerolog.Logger
}

type addItemRequest struct {
	VariantID string `json:"variantId" validate:"required,uuid"`
	Qty       int32  `json:"qty" validate:"required,gt=0,lte=999"`
}

type updateQtyRequest struct {
	Qty int32 `json:"qty" validate:"required,gt=0,lte=999"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type appliedPromoDTO struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

type pricedLineDTO struct {
	VariantID    string            `json:"variantId"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Qty          int32             `json:"qty"`
	UnitPrice    string            `json:"unitPrice"`
	UnitFinal    string            `json:"unitFinal"`
	UnitDiscount string            `json:"unitDiscount"`
	LineTotal    string            `json:"lineTotal"`
	LineSavings  string            `json:"lineSavings"`
	Promotions   []appliedPromoDTO `json:"promotions,omitempty"`
}

type pricingResponse struct {
	Lines            []pricedLineDTO `json:"lines"`
	Subtotal         string          `json:"subtotal"`
	PromotionSavings string          `json:"promotionSavings"`
	CouponApplied    bool            `json:"couponApplied"`
	CouponCode       string          `json:"couponCode,omitempty"`
	DiscountAmount   string          `json:"discountAmount"`
	TaxRate          string          `json:"taxRate"`
	TaxAmount        string          `json:"taxAmount"`
	ShippingMethod   string          `json:"shippingMethod,omitempty"`
	ShippingAmount   string          `json:"shippingAmount"`
	Total            string          `json:"total"`
}

// GetPricing handles GET /carts/pricing. Optional country, state and method
// query parameters add a shipping quote to the breakdown.
func (h *Handlers) GetPricing(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var rate *pricing.RateQuote
	q := r.URL.Query()
	if country, method := q.Get("country"), q.Get("method"); country != "" && method != "" {
		found, err := h.Shipping.FindRate(r.Context(), country, q.Get("state"), method)
		if err != nil {
			if errors.Is(err, shipping.ErrNoRate) {
				common.JSONError(w, http.StatusUnprocessableEntity, "NO_SHIPPING_RATE", "no shipping rate for destination", nil)
				return
			}
			h.writeError(w, err)
			return
		}
		quote := shipping.Quote(found)
		rate = &quote
	}

	res, err := h.Svc.GetPricing(r.Context(), userID, rate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if obs.PricingCartTotal != nil {
		obs.PricingCartTotal.Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPricingResponse(res)})
}

// AddItem handles POST /carts/items.
func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid variantId", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), userID, variantID, req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateItem handles PATCH /carts/items/{itemID}.
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid item id", nil)
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), userID, itemID, req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem handles DELETE /carts/items/{itemID}.
func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyCoupon handles POST /carts/apply-coupon.
func (h *Handlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	res, err := h.Svc.ApplyCoupon(r.Context(), userID, req.Code)
	if err != nil {
		if obs.CouponApplyTotal != nil {
			obs.CouponApplyTotal.WithLabelValues("rejected").Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.CouponApplyTotal != nil {
		obs.CouponApplyTotal.WithLabelValues("applied").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPricingResponse(res)})
}

// RemoveCoupon handles DELETE /carts/coupon.
func (h *Handlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrVariantUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "VARIANT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, coupon.ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXPIRED", "coupon expired", nil)
	case errors.Is(err, coupon.ErrUsageLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXHAUSTED", "coupon usage limit reached", nil)
	case errors.Is(err, coupon.ErrMinCartTotal):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_MIN_CART", "cart total below coupon minimum", nil)
	case errors.Is(err, coupon.ErrInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INVALID", "coupon not active", nil)
	default:
		h.Log.Error().Err(err).Msg("cart operation failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(uid)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func toPricingResponse(res pricing.Result) pricingResponse {
	lines := make([]pricedLineDTO, 0, len(res.Lines))
	for _, line := range res.Lines {
		dto := pricedLineDTO{
			VariantID:    line.VariantID.String(),
			SKU:          line.SKU,
			Name:         line.Name,
			Qty:          line.Qty,
			UnitPrice:    money.Format(line.UnitPrice),
			UnitFinal:    money.Format(line.UnitFinal),
			UnitDiscount: money.Format(line.UnitDiscount),
			LineTotal:    money.Format(line.LineTotal),
			LineSavings:  money.Format(line.LineSavings),
		}
		for _, p := range line.Applied {
			dto.Promotions = append(dto.Promotions, appliedPromoDTO{Name: p.Name, Level: p.Level})
		}
		lines = append(lines, dto)
	}
	return pricingResponse{
		Lines:            lines,
		Subtotal:         money.Format(res.Subtotal),
		PromotionSavings: money.Format(res.PromotionSavings),
		CouponApplied:    res.CouponApplied,
		CouponCode:       res.CouponCode,
		DiscountAmount:   money.Format(res.DiscountAmount),
		TaxRate:          res.TaxRate.String(),
		TaxAmount:        money.Format(res.TaxAmount),
		ShippingMethod:   res.ShippingMethod,
		ShippingAmount:   money.Format(res.ShippingAmount),
		Total:            money.Format(res.Total),
	}
}
