package repo

import (
	"context"

	"github.com/google/uuid"
)

// InsertAuditLogParams is one audited action.
type InsertAuditLogParams struct {
	ActorKind    string
	ActorUserID  *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     []byte
}

const insertAuditLog = `
INSERT INTO audit_logs (actor_kind, actor_user_id, action, resource_type, resource_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

// InsertAuditLog persists an audit entry.
func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, insertAuditLog,
		arg.ActorKind, arg.ActorUserID, arg.Action, arg.ResourceType,
		arg.ResourceID, arg.Metadata).Scan(&id)
	return id, err
}
