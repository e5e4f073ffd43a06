package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const subjectIDKey ctxKey = "subjectID"

// protected lists the methods that require an access token.
var protected = map[string]bool{
	pb.AuthService_LogoutEverywhere_FullMethodName: true,
	pb.AuthService_Sessions_FullMethodName:         true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if protected[info.FullMethod] {

		accessToken := accessTokenFromMetadata(ctx)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, common.CodeInvalidAccessToken)
		}

		claims, err := s.sessions.Authenticate(ctx, accessToken)
		if err != nil {
			return nil, toStatus(err)
		}

		subjectID, err := claims.SubjectID()
		if err != nil {
			return nil, toStatus(common.ErrInvalidAccessToken)
		}

		ctx = context.WithValue(ctx, subjectIDKey, subjectID)

	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	code := common.CodeOK
	if err != nil {
		code = status.Convert(err).Message()
	}
	s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", code, "duration", time.Since(started))
	return resp, err
}

func accessTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	if values := md.Get("authorization"); len(values) > 0 {
		return strings.TrimPrefix(values[0], common.BearerPrefix)
	}
	return ""
}

func subjectFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(subjectIDKey).(int64)
	return id, ok
}
