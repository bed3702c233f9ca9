// Package audit writes audit records for financially significant actions.
// The checkout transaction records the order's totals through here so the
// audit row commits or rolls back together with the order itself.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindUser represents an authenticated end-user.
	ActorKindUser ActorKind = "user"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
)

// Store defines the persistence operation required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, arg repo.InsertAuditLogParams) (uuid.UUID, error)
}

// RecordOrder persists an audit entry summarising an order's financial
// totals. Amounts are serialised as fixed two-decimal strings.
func RecordOrder(ctx context.Context, store Store, action string, actor ActorKind, actorID uuid.UUID, order repo.Order) error {
	metadata, err := json.Marshal(map[string]string{
		"currency":        order.Currency,
		"subtotal":        money.Format(order.Subtotal),
		"discount_amount": money.Format(order.DiscountAmount),
		"tax_amount":      money.Format(order.TaxAmount),
		"shipping_amount": money.Format(order.ShippingAmount),
		"total":           money.Format(order.Total),
		"status":          order.Status,
	})
	if err != nil {
		return err
	}
	var actorUserID *uuid.UUID
	if actor == ActorKindUser && actorID != uuid.Nil {
		actorUserID = &actorID
	}
	_, err = store.InsertAuditLog(ctx, repo.InsertAuditLogParams{
		ActorKind:    string(actor),
		ActorUserID:  actorUserID,
		Action:       action,
		ResourceType: "order",
		ResourceID:   order.ID.String(),
		Metadata:     metadata,
	})
	return err
}
