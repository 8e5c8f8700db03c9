package auth

import (
	"context"
	"net/http"
)

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyUserID is the key for the verified user ID in the context
	ContextKeyUserID ContextKey = "userID"
)

// WithUserID returns a copy of ctx carrying the verified user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID retrieves the verified user ID from the request context.
// It is empty when the request was not authenticated.
func GetUserID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyUserID).(string); ok {
		return id
	}
	return ""
}
