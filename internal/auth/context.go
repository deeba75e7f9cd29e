package auth

import (
	"context"

	"github.com/fdg312/coach-nutrition/internal/userctx"
)

func WithClientID(ctx context.Context, clientID string) context.Context {
	return userctx.WithClientID(ctx, clientID)
}

func GetClientID(ctx context.Context) (string, bool) {
	return userctx.GetClientID(ctx)
}
