// Package userctx carries the authenticated client id across package
// boundaries without importing auth.
package userctx

import (
	"context"
	"strings"
)

type contextKey struct{}

var clientIDKey contextKey

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

func GetClientID(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientIDKey).(string)
	return clientID, ok
}

// ClientIDOr returns the client id on ctx, or fallback when it is missing
// or blank.
func ClientIDOr(ctx context.Context, fallback string) string {
	if id, ok := GetClientID(ctx); ok && strings.TrimSpace(id) != "" {
		return id
	}
	return fallback
}
