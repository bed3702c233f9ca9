package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/repo"
)

type fakeOrderStore struct {
	orders    map[uuid.UUID]repo.Order
	items     map[uuid.UUID][]repo.OrderItem
	inventory map[uuid.UUID]repo.Inventory
	refunds   []repo.Refund
	auditLogs []repo.InsertAuditLogParams

	beforeTransition func(s *fakeOrderStore, id uuid.UUID)
}

func (s *fakeOrderStore) snapshot() *fakeOrderStore {
	cp := *s
	cp.orders = make(map[uuid.UUID]repo.Order, len(s.orders))
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	cp.inventory = make(map[uuid.UUID]repo.Inventory, len(s.inventory))
	for k, v := range s.inventory {
		cp.inventory[k] = v
	}
	cp.refunds = append([]repo.Refund(nil), s.refunds...)
	cp.auditLogs = append([]repo.InsertAuditLogParams(nil), s.auditLogs...)
	return &cp
}

func (s *fakeOrderStore) GetOrderForUser(_ context.Context, id, userID uuid.UUID) (repo.Order, error) {
	o, ok := s.orders[id]
	if !ok || o.UserID != userID {
		return repo.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *fakeOrderStore) GetOrderByID(_ context.Context, id uuid.UUID) (repo.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return repo.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *fakeOrderStore) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]repo.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *fakeOrderStore) ListOrdersForUser(_ context.Context, userID uuid.UUID, limit, offset int32) ([]repo.Order, error) {
	var out []repo.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeOrderStore) CountOrdersForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, o := range s.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *fakeOrderStore) TransitionOrderStatus(_ context.Context, id uuid.UUID, from, to string) (int64, error) {
	if s.beforeTransition != nil {
		s.beforeTransition(s, id)
	}
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return 0, nil
	}
	o.Status = to
	s.orders[id] = o
	return 1, nil
}

func (s *fakeOrderStore) ReleaseInventory(_ context.Context, variantID uuid.UUID, qty int32) (int64, error) {
	inv, ok := s.inventory[variantID]
	if !ok || inv.Reserved < qty {
		return 0, nil
	}
	inv.Reserved -= qty
	s.inventory[variantID] = inv
	return 1, nil
}

func (s *fakeOrderStore) ConsumeInventory(_ context.Context, variantID uuid.UUID, qty int32) (int64, error) {
	inv, ok := s.inventory[variantID]
	if !ok || inv.Reserved < qty || inv.Quantity < qty {
		return 0, nil
	}
	inv.Reserved -= qty
	inv.Quantity -= qty
	s.inventory[variantID] = inv
	return 1, nil
}

func (s *fakeOrderStore) CreateRefund(_ context.Context, orderID uuid.UUID, amount decimal.Decimal) (uuid.UUID, error) {
	r := repo.Refund{ID: uuid.New(), OrderID: orderID, Amount: amount, Status: "PENDING"}
	s.refunds = append(s.refunds, r)
	return r.ID, nil
}

func (s *fakeOrderStore) InsertAuditLog(_ context.Context, arg repo.InsertAuditLogParams) (uuid.UUID, error) {
	s.auditLogs = append(s.auditLogs, arg)
	return uuid.New(), nil
}

type fakeOrderRunner struct {
	store *fakeOrderStore
}

func (r fakeOrderRunner) WithinTx(_ context.Context, fn func(Store) error) error {
	saved := r.store.snapshot()
	if err := fn(r.store); err != nil {
		*r.store = *saved
		return err
	}
	return nil
}

type orderFixture struct {
	store     *fakeOrderStore
	svc       *Service
	userID    uuid.UUID
	orderID   uuid.UUID
	variantID uuid.UUID
}

func newOrderFixture(t *testing.T, status string) *orderFixture {
	t.Helper()
	f := &orderFixture{
		userID:    uuid.New(),
		orderID:   uuid.New(),
		variantID: uuid.New(),
	}
	f.store = &fakeOrderStore{
		orders: map[uuid.UUID]repo.Order{
			f.orderID: {
				ID: f.orderID, UserID: f.userID, Status: status, Currency: "USD",
				Subtotal: decimal.RequireFromString("100.00"),
				Total:    decimal.RequireFromString("102.20"),
				CreatedAt: time.Now(),
			},
		},
		items: map[uuid.UUID][]repo.OrderItem{
			f.orderID: {{
				ID: uuid.New(), OrderID: f.orderID, VariantID: f.variantID,
				Name: "Basic Tee", SKU: "TEE-BLK-M", Qty: 2,
				UnitPrice: decimal.RequireFromString("50.00"),
				LineTotal: decimal.RequireFromString("100.00"),
			}},
		},
		inventory: map[uuid.UUID]repo.Inventory{
			f.variantID: {VariantID: f.variantID, Quantity: 10, Reserved: 2},
		},
	}
	f.svc = &Service{
		Reader: f.store,
		Runner: fakeOrderRunner{store: f.store},
		Log:    zerolog.Nop(),
	}
	return f
}

func TestCancelPendingReleasesReservation(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPending)

	ord, err := f.svc.Cancel(context.Background(), f.userID, f.orderID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, ord.Status)
	require.Equal(t, StatusCancelled, f.store.orders[f.orderID].Status)
	require.Equal(t, int32(0), f.store.inventory[f.variantID].Reserved)
	require.Equal(t, int32(10), f.store.inventory[f.variantID].Quantity)
	require.Empty(t, f.store.refunds)
	require.Len(t, f.store.auditLogs, 1)
}

func TestCancelPaidCreatesRefund(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPaid)

	_, err := f.svc.Cancel(context.Background(), f.userID, f.orderID)
	require.NoError(t, err)
	require.Len(t, f.store.refunds, 1)
	require.Equal(t, "PENDING", f.store.refunds[0].Status)
	require.True(t, f.store.refunds[0].Amount.Equal(decimal.RequireFromString("102.20")))
}

func TestCancelShippedRejected(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusShipped)

	_, err := f.svc.Cancel(context.Background(), f.userID, f.orderID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeState, appErr.Code)
	require.Equal(t, int32(2), f.store.inventory[f.variantID].Reserved)
}

func TestCancelRaceRollsBack(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPending)

	f.store.beforeTransition = func(s *fakeOrderStore, id uuid.UUID) {
		o := s.orders[id]
		o.Status = StatusPaid
		s.orders[id] = o
		s.beforeTransition = nil
	}

	_, err := f.svc.Cancel(context.Background(), f.userID, f.orderID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeStateRace, appErr.Code)
	require.Equal(t, int32(2), f.store.inventory[f.variantID].Reserved)
	require.Empty(t, f.store.refunds)
}

func TestCancelForeignOrderNotFound(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPending)

	_, err := f.svc.Cancel(context.Background(), uuid.New(), f.orderID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeNotFound, appErr.Code)
}

func TestShipConsumesReservation(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPaid)

	ord, err := f.svc.Transition(context.Background(), f.orderID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, ord.Status)

	inv := f.store.inventory[f.variantID]
	require.Equal(t, int32(8), inv.Quantity)
	require.Equal(t, int32(0), inv.Reserved)
}

func TestTransitionRejectsSkippedStates(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPending)

	_, err := f.svc.Transition(context.Background(), f.orderID, StatusDelivered)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeState, appErr.Code)
}

func TestAdminCancelRefundsPaidOrder(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPaid)

	ord, err := f.svc.Transition(context.Background(), f.orderID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, ord.Status)
	require.Len(t, f.store.refunds, 1)
	require.Equal(t, int32(0), f.store.inventory[f.variantID].Reserved)
}

func TestListPagination(t *testing.T) {
	t.Parallel()
	f := newOrderFixture(t, StatusPending)
	for i := 0; i < 4; i++ {
		id := uuid.New()
		f.store.orders[id] = repo.Order{ID: id, UserID: f.userID, Status: StatusPending}
	}

	orders, total, err := f.svc.List(context.Background(), f.userID, 1, 3)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, orders, 3)
}

func TestStatusMachine(t *testing.T) {
	t.Parallel()
	require.True(t, CanTransition(StatusPending, StatusPaid))
	require.True(t, CanTransition(StatusPaid, StatusShipped))
	require.True(t, CanTransition(StatusDelivered, StatusReturnRequested))
	require.False(t, CanTransition(StatusShipped, StatusCancelled))
	require.False(t, CanTransition(StatusCancelled, StatusPending))
	require.True(t, Cancellable(StatusAwaitingPayment))
	require.False(t, Cancellable(StatusDelivered))
}
