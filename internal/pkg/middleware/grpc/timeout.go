package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// DefaultRPCTimeout bounds calls that arrive without a deadline.
const DefaultRPCTimeout = 10 * time.Second

// UnaryTimeoutInterceptor gives outgoing calls without a deadline DefaultRPCTimeout.
func UnaryTimeoutInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()
	return invoker(ctx, method, req, reply, cc, opts...)
}

// UnaryServerTimeoutInterceptor applies the same bound to incoming calls.
func UnaryServerTimeoutInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()
	return handler(ctx, req)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultRPCTimeout)
}
