package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor turns handler panics into codes.Internal and logs every
// call with its status code. Health probes are logged at debug level.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panic",
					"method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
			logCall(ctx, logger, info.FullMethod, time.Since(start), err)
		}()
		return handler(ctx, req)
	}
}

// StreamInterceptor recovers panics in streaming handlers such as health Watch.
func StreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic",
					"method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, took time.Duration, err error) {
	code := status.Code(err)
	level := slog.LevelInfo
	switch {
	case code == codes.Internal || code == codes.Unknown:
		level = slog.LevelError
	case err != nil:
		level = slog.LevelWarn
	case strings.HasPrefix(method, "/grpc.health."):
		level = slog.LevelDebug
	}
	attrs := []any{"method", method, "code", code.String(), "duration", took}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	logger.Log(ctx, level, "grpc call", attrs...)
}
