package rembg

import (
	"context"

	"github.com/segmentio/ksuid"
)

type requestIDKey struct{}

func NewRequestID() string {
	return ksuid.New().String()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 没有时返回空串
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
