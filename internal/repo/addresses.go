package repo

import (
	"context"

	"github.com/google/uuid"
)

const getAddressForUser = `
SELECT id, user_id, full_name, phone, country, state, city, postal_code, line1, line2
FROM addresses
WHERE id = $1 AND user_id = $2
`

// GetAddressForUser loads an address, scoped to its owner.
func (q *Queries) GetAddressForUser(ctx context.Context, id, userID uuid.UUID) (Address, error) {
	var a Address
	row := q.db.QueryRow(ctx, getAddressForUser, id, userID)
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Country, &a.State,
		&a.City, &a.PostalCode, &a.Line1, &a.Line2)
	return a, err
}
