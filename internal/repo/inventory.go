package repo

import (
	"context"

	"github.com/google/uuid"
)

const getInventory = `
SELECT variant_id, quantity, reserved
FROM inventory
WHERE variant_id = $1
`

// GetInventory returns the stock row for a variant.
func (q *Queries) GetInventory(ctx context.Context, variantID uuid.UUID) (Inventory, error) {
	var inv Inventory
	row := q.db.QueryRow(ctx, getInventory, variantID)
	err := row.Scan(&inv.VariantID, &inv.Quantity, &inv.Reserved)
	return inv, err
}

const reserveInventory = `
UPDATE inventory
SET reserved = reserved + $2
WHERE variant_id = $1 AND quantity - reserved >= $2
`

// ReserveInventory increments the reservation, conditioned on available stock
// still covering the request at write time. Zero rows affected means a
// concurrent checkout won the remaining units.
func (q *Queries) ReserveInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error) {
	tag, err := q.db.Exec(ctx, reserveInventory, variantID, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const releaseInventory = `
UPDATE inventory
SET reserved = reserved - $2
WHERE variant_id = $1 AND reserved >= $2
`

// ReleaseInventory returns reserved units to available stock on cancellation.
func (q *Queries) ReleaseInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error) {
	tag, err := q.db.Exec(ctx, releaseInventory, variantID, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const consumeInventory = `
UPDATE inventory
SET reserved = reserved - $2, quantity = quantity - $2
WHERE variant_id = $1 AND reserved >= $2 AND quantity >= $2
`

// ConsumeInventory permanently consumes a reservation when the order ships.
func (q *Queries) ConsumeInventory(ctx context.Context, variantID uuid.UUID, qty int32) (int64, error) {
	tag, err := q.db.Exec(ctx, consumeInventory, variantID, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
