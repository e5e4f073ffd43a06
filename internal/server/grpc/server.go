// Package grpc exposes SessionService as tokenkeeper.v1.AuthService.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// Sessions is the part of services.SessionService the transport needs.
type Sessions interface {
	Login(ctx context.Context, req services.LoginRequest) (*auth.TokenPair, error)
	Refresh(ctx context.Context, req services.RefreshRequest) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutEverywhere(ctx context.Context, subjectID int64) (int64, error)
	Sessions(ctx context.Context, subjectID int64) ([]*models.RefreshToken, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address  string
	sessions Sessions
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, s Sessions) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: s,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	pb.RegisterAuthServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
