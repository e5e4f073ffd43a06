package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu     sync.Mutex
	tokens models.Tokens
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.current()
	if access == "" || method == pb.AuthService_Refresh_FullMethodName {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err != nil {

		st, ok := status.FromError(err)
		if !ok {
			return err
		}

		if st.Code() != codes.Unauthenticated || st.Message() != common.CodeAccessTokenExpired {
			return err
		}

		if refresh == "" {
			return err
		}

		resp, rerr := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refresh})
		if rerr != nil {
			return rerr
		}
		s.store(resp)

		// tokens rotated, retry with the new access token
		return invoker(withAccessToken(ctx, resp.AccessToken), method, req, reply, cc, opts...)

	}

	return nil
}

func NewAuthClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithUserAgent("authctl"),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Tokens() *models.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tokens
	return &t
}

func (s *GRPCClient) SetTokens(t *models.Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil {
		s.tokens = models.Tokens{}
		return
	}
	s.tokens = *t
}

func (s *GRPCClient) current() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.AccessToken, s.tokens.RefreshToken
}

func (s *GRPCClient) store(resp *pb.TokenResponse) *models.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.AccessToken = resp.AccessToken
	s.tokens.AccessExpiresAt = time.Unix(resp.AccessExpiresAt, 0).UTC()
	s.tokens.RefreshToken = resp.RefreshToken
	s.tokens.RefreshExpiresAt = time.Unix(resp.RefreshExpiresAt, 0).UTC()
	t := s.tokens
	return &t
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) (*models.Tokens, error) {

	req := &pb.LoginRequest{Email: email, Password: string(password)}

	resp, err := s.client.Login(ctx, req)

	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetTokens(&models.Tokens{Email: email})
	return s.store(resp), nil

}

func (s *GRPCClient) Refresh(ctx context.Context) (*models.Tokens, error) {

	_, refresh := s.current()
	if refresh == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		return nil, s.mapError(err)
	}

	return s.store(resp), nil

}

func (s *GRPCClient) Logout(ctx context.Context) error {

	_, refresh := s.current()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	if _, err := s.client.Logout(ctx, &pb.LogoutRequest{RefreshToken: refresh}); err != nil {
		return s.mapError(err)
	}

	s.SetTokens(nil)
	return nil

}

func (s *GRPCClient) LogoutEverywhere(ctx context.Context) (int64, error) {

	if access, _ := s.current(); access == "" {
		return 0, ErrNotLoggedIn
	}

	resp, err := s.client.LogoutEverywhere(ctx, &pb.LogoutEverywhereRequest{})
	if err != nil {
		return 0, s.mapError(err)
	}

	s.SetTokens(nil)
	return resp.Revoked, nil

}

func (s *GRPCClient) Sessions(ctx context.Context) ([]models.Session, error) {

	if access, _ := s.current(); access == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Sessions(ctx, &pb.SessionsRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}

	out := make([]models.Session, 0, len(resp.Sessions))
	for _, r := range resp.Sessions {
		sess := models.Session{
			ID:        r.Id,
			IssuedAt:  time.Unix(r.IssuedAt, 0).UTC(),
			ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
			IPAddress: r.IpAddress,
			UserAgent: r.UserAgent,
		}
		if r.RevokedAt != 0 {
			at := time.Unix(r.RevokedAt, 0).UTC()
			sess.RevokedAt = &at
		}
		out = append(out, sess)
	}
	return out, nil

}

func (s *GRPCClient) Ping(ctx context.Context) error {

	req := &pb.PingRequest{}

	resp, err := s.client.Ping(ctx, req)
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil

}

// mapError turns a status into the matching common sentinel. The server
// puts the stable code in the status message.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.FromCode(st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
