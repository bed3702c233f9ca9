package common

import "context"

type userIDKey struct{}

// WithUserID stamps the authenticated user's id onto the context. The auth
// middleware is the only writer.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID reads the authenticated user's id, reporting whether one is set.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
