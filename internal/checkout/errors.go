package checkout

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
)

// Stable error codes surfaced to callers. Race-lost codes are distinct from
// plain business failures: both abort, but a race-lost checkout may succeed
// on retry after the caller re-validates.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeEmptyCart       = "EMPTY_CART"
	CodeInventory       = "INVENTORY_ERROR"
	CodeAddressNotFound = "ADDRESS_NOT_FOUND"
	CodeNoShippingRate  = "NO_SHIPPING_RATE"
	CodeShippingBand    = "SHIPPING_BAND"
	CodeCouponNotFound  = "COUPON_NOT_FOUND"
	CodeCouponInvalid   = "COUPON_INVALID"
	CodeCouponExpired   = "COUPON_EXPIRED"
	CodeCouponExhausted = "COUPON_EXHAUSTED"
	CodeCouponMinCart   = "COUPON_MIN_CART"
	CodeStockChanged    = "STOCK_CHANGED"
	CodeCouponLimitRace = "COUPON_LIMIT_RACE"
	CodeCartStateRace   = "CART_STATE_RACE"
	CodeTimeout         = "CHECKOUT_TIMEOUT"
)

// Shortfall describes one cart line that cannot be fulfilled. The checkout
// validation pass reports every offending line at once so the client can
// adjust quantities in a single round trip.
type Shortfall struct {
	VariantID uuid.UUID `json:"variantId"`
	SKU       string    `json:"sku"`
	Requested int32     `json:"requested"`
	Available int32     `json:"available"`
	Reason    string    `json:"reason"`
}

func businessErr(code, message string) *common.AppError {
	return common.NewAppError(code, message, http.StatusUnprocessableEntity, nil)
}

func raceErr(code, message string) *common.AppError {
	return common.NewAppError(code, message, http.StatusConflict, nil)
}

func inventoryErr(shortfalls []Shortfall) *common.AppError {
	err := common.NewAppError(CodeInventory, "insufficient stock for one or more items", http.StatusConflict, nil)
	err.Details = shortfalls
	return err
}

func couponErr(err error) *common.AppError {
	switch {
	case errors.Is(err, coupon.ErrExpired):
		return businessErr(CodeCouponExpired, "coupon expired")
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return businessErr(CodeCouponExhausted, "coupon usage limit reached")
	case errors.Is(err, coupon.ErrMinCartTotal):
		return businessErr(CodeCouponMinCart, "cart total below coupon minimum")
	default:
		return businessErr(CodeCouponInvalid, "coupon not active")
	}
}
