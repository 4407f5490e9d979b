// ABOUTME: gRPC interceptors for authenticating requests via the credential verifier
// ABOUTME: Extracts bearer credentials from metadata and populates the context

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// codeForError maps a taxonomy error to a gRPC status code.
func codeForError(err error) codes.Code {
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		return codes.Unavailable
	case errors.Is(err, ErrForbidden):
		return codes.PermissionDenied
	default:
		return codes.Unauthenticated
	}
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates
// requests through the verifier. The optional logger enables auth failure
// logging for security monitoring.
func UnaryInterceptor(v *Verifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		principal, err := extractPrincipal(ctx, v, logger)
		if err != nil {
			return nil, err
		}

		ctx = WithPrincipal(ctx, principal)
		return handler(ctx, req)
	}
}

// StreamInterceptor returns a gRPC stream interceptor that authenticates
// requests through the verifier.
func StreamInterceptor(v *Verifier, logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		principal, err := extractPrincipal(ss.Context(), v, logger)
		if err != nil {
			return err
		}

		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithPrincipal(ss.Context(), principal),
		}
		return handler(srv, wrapped)
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// extractPrincipal pulls the bearer credential from incoming metadata and
// runs it through the verifier.
func extractPrincipal(ctx context.Context, v *Verifier, logger *slog.Logger) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing metadata")
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		logAuthFailure(logger, ctx, "missing authorization header")
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	authHeader := authHeaders[0]
	if !strings.HasPrefix(authHeader, "Bearer ") {
		logAuthFailure(logger, ctx, "invalid authorization header format")
		return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
	}

	bearer := strings.TrimPrefix(authHeader, "Bearer ")
	principal, err := v.Authenticate(ctx, bearer)
	if err != nil {
		logAuthFailure(logger, ctx, messageForError(err))
		return nil, status.Error(codeForError(err), messageForError(err))
	}

	return principal, nil
}
