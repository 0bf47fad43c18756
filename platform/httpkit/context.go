package httpkit

import (
	"context"

	"fantopark_backend/platform/logger"
)

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logger.RequestIDKey, id)
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logger.UserIDKey, id)
}
