// Package ctxkeys holds the shared context keys for the API layer.
// Extracted to a leaf package to avoid import cycles between api and
// api/handlers.
package ctxkeys

import "context"

// Key is the unexported named type for all API context keys. A named type
// avoids collisions with string keys from other packages (context.Value
// compares both type and value).
type Key string

// UserID is the context key for the authenticated user. Injected by
// AuthMiddleware from JWT claims.
const UserID Key = "user_id"

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
