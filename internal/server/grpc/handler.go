package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.TokenResponse, error) {

	ip, ua := provenance(ctx)
	pair, err := s.sessions.Login(ctx, services.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: ip,
		UserAgent: ua,
	})

	if err != nil {
		return nil, toStatus(err)
	}

	return tokenResponse(pair), nil

}

func (s *GRPCServer) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.TokenResponse, error) {

	ip, ua := provenance(ctx)
	pair, err := s.sessions.Refresh(ctx, services.RefreshRequest{
		RefreshToken: req.RefreshToken,
		IPAddress:    ip,
		UserAgent:    ua,
	})

	if err != nil {
		return nil, toStatus(err)
	}

	return tokenResponse(pair), nil

}

func (s *GRPCServer) Logout(ctx context.Context, req *pb.LogoutRequest) (*pb.LogoutResponse, error) {

	if err := s.sessions.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}

	return &pb.LogoutResponse{}, nil

}

func (s *GRPCServer) LogoutEverywhere(ctx context.Context, req *pb.LogoutEverywhereRequest) (*pb.LogoutEverywhereResponse, error) {

	subjectID, ok := subjectFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.CodeInvalidAccessToken)
	}

	n, err := s.sessions.LogoutEverywhere(ctx, subjectID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.LogoutEverywhereResponse{Revoked: n}, nil

}

func (s *GRPCServer) Sessions(ctx context.Context, req *pb.SessionsRequest) (*pb.SessionsResponse, error) {

	subjectID, ok := subjectFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.CodeInvalidAccessToken)
	}

	rows, err := s.sessions.Sessions(ctx, subjectID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.SessionsResponse{Sessions: make([]*pb.Session, 0, len(rows))}
	for _, r := range rows {
		sess := &pb.Session{
			Id:        r.ID,
			IssuedAt:  r.IssuedAt.Unix(),
			ExpiresAt: r.ExpiresAt.Unix(),
			IpAddress: r.IPAddress,
			UserAgent: r.UserAgent,
		}
		if r.RevokedAt != nil {
			sess.RevokedAt = r.RevokedAt.Unix()
		}
		resp.Sessions = append(resp.Sessions, sess)
	}
	return resp, nil

}

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {

	return &pb.PingResponse{Status: "OK"}, nil

}

// toStatus maps a core error to a status whose message is the stable code.
func toStatus(err error) error {
	code := common.Code(err)
	switch {
	case errors.Is(err, common.ErrAccountDeactivated):
		return status.Error(codes.PermissionDenied, code)
	case code == common.CodeInternal:
		return status.Error(codes.Internal, code)
	default:
		return status.Error(codes.Unauthenticated, code)
	}
}

func tokenResponse(p *auth.TokenPair) *pb.TokenResponse {
	return &pb.TokenResponse{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiry.Unix(),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiry.Unix(),
	}
}

func provenance(ctx context.Context) (ip, userAgent string) {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ip = hostOnly(p.Addr.String())
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("user-agent"); len(v) > 0 {
			userAgent = v[0]
		}
	}
	return ip, userAgent
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
