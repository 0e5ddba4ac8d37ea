package bridge

import (
	"context"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge/auth"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const sessionKey ctxKey = "session"

// SessionFromContext returns the session of an authenticated call.
func SessionFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionKey).(string)
	return v, ok
}

// authorize validates the access token carried in the call metadata.
func (s *Server) authorize(ctx context.Context) (context.Context, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	session, err := auth.ValidateToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return context.WithValue(ctx, sessionKey, session), nil
}

func (s *Server) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authorize(ctx)
	if err != nil {
		s.logger.Warn(context.Background(), "rejected bridge call", "method", info.FullMethod, "error", err)
		return nil, err
	}
	return handler(ctx, req)
}

// authStream carries the authorized context into a stream handler.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authStream) Context() context.Context { return a.ctx }

func (s *Server) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authorize(ss.Context())
	if err != nil {
		s.logger.Warn(ss.Context(), "rejected bridge stream", "method", info.FullMethod, "error", err)
		return err
	}
	return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
}
