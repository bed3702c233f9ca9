// Package order owns the order lifecycle after checkout has committed the
// immutable snapshot: status transitions, cancellation with inventory
// release, and shipment consuming the reservation.
package order

// Order lifecycle statuses.
const (
	StatusPending         = "PENDING"
	StatusAwaitingPayment = "AWAITING_PAYMENT"
	StatusPaid            = "PAID"
	StatusShipped         = "SHIPPED"
	StatusDelivered       = "DELIVERED"
	StatusCancelled       = "CANCELLED"
	StatusReturnRequested = "RETURN_REQUESTED"
	StatusReturned        = "RETURNED"
	StatusRefunded        = "REFUNDED"
)

var transitions = map[string][]string{
	StatusPending:         {StatusAwaitingPayment, StatusPaid, StatusCancelled},
	StatusAwaitingPayment: {StatusPaid, StatusCancelled},
	StatusPaid:            {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {StatusReturnRequested},
	StatusReturnRequested: {StatusReturned},
	StatusReturned:        {StatusRefunded},
}

// CanTransition reports whether the status machine allows moving from one
// status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in the given status may be cancelled.
// Once shipped, the stock has left the building and cancellation is closed.
func Cancellable(status string) bool {
	return CanTransition(status, StatusCancelled)
}
