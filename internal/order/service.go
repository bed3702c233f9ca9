package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/audit"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Error codes surfaced by order operations.
const (
	CodeNotFound   = "ORDER_NOT_FOUND"
	CodeState      = "ORDER_STATE"
	CodeStateRace  = "ORDER_STATE_RACE"
	CodeValidation = "VALIDATION_ERROR"
)

// Store is the repository slice used by lifecycle transitions. Like checkout,
// the status transition is a conditional write: zero rows affected means a
// concurrent transition won.
type Store interface {
	GetOrderForUser(ctx context.Context, id, userID uuid.UUID) (repo.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (repo.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]repo.OrderItem, error)
	TransitionOrderStatus(ctx context.Context, id uuid.UUID, from, to string) (int64, error)
	ReleaseInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error)
	ConsumeInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error)
	CreateRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (uuid.UUID, error)
	InsertAuditLog(ctx context.Context, arg repo.InsertAuditLogParams) (uuid.UUID, error)
}

// Runner executes a lifecycle transition inside one transaction.
type Runner interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// PGRunner runs order transactions over pgx.
type PGRunner struct {
	Queries *repo.Queries
}

// WithinTx implements Runner on top of the repository's transaction helper.
func (r PGRunner) WithinTx(ctx context.Context, fn func(Store) error) error {
	return r.Queries.WithinTx(ctx, func(q *repo.Queries) error {
		return fn(q)
	})
}

// Reader serves the read-only order queries outside a transaction.
type Reader interface {
	GetOrderForUser(ctx context.Context, id, userID uuid.UUID) (repo.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]repo.OrderItem, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]repo.Order, error)
	CountOrdersForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Detail is an order together with its lines.
type Detail struct {
	Order repo.Order
	Items []repo.OrderItem
}

// Service owns order reads and lifecycle transitions.
type Service struct {
	Reader Reader
	Runner Runner
	Events *events.Bus
	Log    zerolog.Logger
}

// List returns a page of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, perPage int) ([]repo.Order, int64, error) {
	if s == nil || s.Reader == nil {
		return nil, 0, errors.New("order: service not configured")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	total, err := s.Reader.CountOrdersForUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("order: count orders: %w", err)
	}
	orders, err := s.Reader.ListOrdersForUser(ctx, userID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, 0, fmt.Errorf("order: list orders: %w", err)
	}
	return orders, total, nil
}

// Get loads one of the user's orders with its lines.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (Detail, error) {
	if s == nil || s.Reader == nil {
		return Detail{}, errors.New("order: service not configured")
	}
	ord, err := s.Reader.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NewAppError(CodeNotFound, "order not found", http.StatusNotFound, nil)
		}
		return Detail{}, fmt.Errorf("order: load order: %w", err)
	}
	items, err := s.Reader.ListOrderItems(ctx, orderID)
	if err != nil {
		return Detail{}, fmt.Errorf("order: load order items: %w", err)
	}
	return Detail{Order: ord, Items: items}, nil
}

// Cancel cancels the user's own order. Reserved or deducted stock flows back,
// and a paid order additionally gets a PENDING refund for its full total.
func (s *Service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (repo.Order, error) {
	if s == nil || s.Runner == nil {
		return repo.Order{}, errors.New("order: service not configured")
	}
	var cancelled repo.Order
	err := s.Runner.WithinTx(ctx, func(tx Store) error {
		ord, err := tx.GetOrderForUser(ctx, orderID, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewAppError(CodeNotFound, "order not found", http.StatusNotFound, nil)
			}
			return fmt.Errorf("order: load order: %w", err)
		}
		cancelled, err = s.cancelLocked(ctx, tx, ord, audit.ActorKindUser, userID)
		return err
	})
	if err != nil {
		return repo.Order{}, err
	}
	s.emit(ctx, events.TopicOrderCancelled, cancelled)
	return cancelled, nil
}

// Transition moves an order to a new status on behalf of an operator. SHIPPED
// consumes the reservation; CANCELLED releases it and refunds a paid order.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, to string) (repo.Order, error) {
	if s == nil || s.Runner == nil {
		return repo.Order{}, errors.New("order: service not configured")
	}
	var (
		updated repo.Order
		topic   string
	)
	err := s.Runner.WithinTx(ctx, func(tx Store) error {
		ord, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewAppError(CodeNotFound, "order not found", http.StatusNotFound, nil)
			}
			return fmt.Errorf("order: load order: %w", err)
		}
		if to == StatusCancelled {
			updated, err = s.cancelLocked(ctx, tx, ord, audit.ActorKindSystem, uuid.Nil)
			topic = events.TopicOrderCancelled
			return err
		}
		if !CanTransition(ord.Status, to) {
			return common.NewAppError(CodeState,
				fmt.Sprintf("cannot move order from %s to %s", ord.Status, to),
				http.StatusUnprocessableEntity, nil)
		}
		if err := s.transitionLocked(ctx, tx, ord, to); err != nil {
			return err
		}
		if to == StatusShipped {
			items, err := tx.ListOrderItems(ctx, ord.ID)
			if err != nil {
				return fmt.Errorf("order: load order items: %w", err)
			}
			for _, it := range items {
				affected, err := tx.ConsumeInventory(ctx, it.VariantID, it.Qty)
				if err != nil {
					return fmt.Errorf("order: consume inventory %s: %w", it.SKU, err)
				}
				if affected == 0 {
					return fmt.Errorf("order: reservation missing for %s", it.SKU)
				}
			}
		}
		if err := audit.RecordOrder(ctx, tx, "order.status."+to, audit.ActorKindSystem, uuid.Nil, ord); err != nil {
			return fmt.Errorf("order: audit transition: %w", err)
		}
		updated = ord
		updated.Status = to
		switch to {
		case StatusShipped:
			topic = events.TopicOrderShipped
		case StatusDelivered:
			topic = events.TopicOrderDelivered
		}
		return nil
	})
	if err != nil {
		return repo.Order{}, err
	}
	if topic != "" {
		s.emit(ctx, topic, updated)
	}
	return updated, nil
}

// cancelLocked performs the cancellation writes inside the caller's
// transaction. The guarded transition makes concurrent cancels (or a cancel
// racing a ship) mutually exclusive.
func (s *Service) cancelLocked(ctx context.Context, tx Store, ord repo.Order, actor audit.ActorKind, actorID uuid.UUID) (repo.Order, error) {
	if !Cancellable(ord.Status) {
		return repo.Order{}, common.NewAppError(CodeState,
			fmt.Sprintf("order in status %s cannot be cancelled", ord.Status),
			http.StatusUnprocessableEntity, nil)
	}
	if err := s.transitionLocked(ctx, tx, ord, StatusCancelled); err != nil {
		return repo.Order{}, err
	}
	items, err := tx.ListOrderItems(ctx, ord.ID)
	if err != nil {
		return repo.Order{}, fmt.Errorf("order: load order items: %w", err)
	}
	for _, it := range items {
		if _, err := tx.ReleaseInventory(ctx, it.VariantID, it.Qty); err != nil {
			return repo.Order{}, fmt.Errorf("order: release inventory %s: %w", it.SKU, err)
		}
	}
	if ord.Status == StatusPaid {
		if _, err := tx.CreateRefund(ctx, ord.ID, ord.Total); err != nil {
			return repo.Order{}, fmt.Errorf("order: create refund: %w", err)
		}
	}
	if err := audit.RecordOrder(ctx, tx, "order.cancel", actor, actorID, ord); err != nil {
		return repo.Order{}, fmt.Errorf("order: audit cancel: %w", err)
	}
	ord.Status = StatusCancelled
	return ord, nil
}

func (s *Service) transitionLocked(ctx context.Context, tx Store, ord repo.Order, to string) error {
	affected, err := tx.TransitionOrderStatus(ctx, ord.ID, ord.Status, to)
	if err != nil {
		return fmt.Errorf("order: transition status: %w", err)
	}
	if affected == 0 {
		return common.NewAppError(CodeStateRace, "order status changed concurrently", http.StatusConflict, nil)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, topic string, ord repo.Order) {
	if s.Events == nil {
		return
	}
	payload := map[string]string{
		"orderId": ord.ID.String(),
		"userId":  ord.UserID.String(),
		"status":  ord.Status,
	}
	if _, err := s.Events.Emit(context.WithoutCancel(ctx), topic, ord.ID, payload); err != nil {
		s.Log.Error().Err(err).Str("order_id", ord.ID.String()).Str("topic", topic).Msg("emit order event")
	}
}
