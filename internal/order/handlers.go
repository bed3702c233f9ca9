package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var validate = validator.New()

// Handlers exposes order reads and lifecycle operations over HTTP.
type Handlers struct {
	Svc *Service
	Log zerolog.Logger
}

type orderSummary struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
	Subtotal       string    `json:"subtotal"`
	DiscountAmount string    `json:"discountAmount"`
	TaxAmount      string    `json:"taxAmount"`
	ShippingMethod string    `json:"shippingMethod"`
	ShippingAmount string    `json:"shippingAmount"`
	Total          string    `json:"total"`
	CreatedAt      time.Time `json:"createdAt"`
}

type orderItemDTO struct {
	VariantID string `json:"variantId"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Qty       int32  `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type orderDetail struct {
	orderSummary
	TaxRate         string          `json:"taxRate"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	BillingAddress  json.RawMessage `json:"billingAddress"`
	Items           []orderItemDTO  `json:"items"`
}

// List handles GET /orders.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Svc.List(r.Context(), userID, page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summaries := make([]orderSummary, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, toSummary(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": summaries,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Get handles GET /orders/{orderID}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid order id", nil)
		return
	}
	detail, err := h.Svc.Get(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDetail(detail)})
}

// Cancel handles POST /orders/{orderID}/cancel.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid order id", nil)
		return
	}
	ord, err := h.Svc.Cancel(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if obs.OrderTransitionsTotal != nil {
		obs.OrderTransitionsTotal.WithLabelValues(ord.Status).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSummary(ord)})
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=AWAITING_PAYMENT PAID SHIPPED DELIVERED CANCELLED RETURN_REQUESTED RETURNED REFUNDED"`
}

// PatchStatus handles PATCH /admin/orders/{orderID}/status.
func (h *Handlers) PatchStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid order id", nil)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeValidation, "invalid status", err.Error())
		return
	}
	ord, err := h.Svc.Transition(r.Context(), orderID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if obs.OrderTransitionsTotal != nil {
		obs.OrderTransitionsTotal.WithLabelValues(ord.Status).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSummary(ord)})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	h.Log.Error().Err(err).Msg("order operation failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
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

func toSummary(o repo.Order) orderSummary {
	return orderSummary{
		ID:             o.ID.String(),
		Status:         o.Status,
		Currency:       o.Currency,
		Subtotal:       money.Format(o.Subtotal),
		DiscountAmount: money.Format(o.DiscountAmount),
		TaxAmount:      money.Format(o.TaxAmount),
		ShippingMethod: o.ShippingMethod,
		ShippingAmount: money.Format(o.ShippingAmount),
		Total:          money.Format(o.Total),
		CreatedAt:      o.CreatedAt,
	}
}

func toDetail(d Detail) orderDetail {
	items := make([]orderItemDTO, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, orderItemDTO{
			VariantID: it.VariantID.String(),
			Name:      it.Name,
			SKU:       it.SKU,
			Qty:       it.Qty,
			UnitPrice: money.Format(it.UnitPrice),
			LineTotal: money.Format(it.LineTotal),
		})
	}
	return orderDetail{
		orderSummary:    toSummary(d.Order),
		TaxRate:         d.Order.TaxRate.String(),
		ShippingAddress: json.RawMessage(d.Order.ShippingAddress),
		BillingAddress:  json.RawMessage(d.Order.BillingAddress),
		Items:           items,
	}
}
