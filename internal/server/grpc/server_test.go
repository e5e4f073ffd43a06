package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := NewGRPCServer("127.0.0.1:0", logging.Nop{}, &fakeSessions{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, &fakeSessions{})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for bad address, got nil")
	}
}

// startBufServer serves a real SessionService over an in-memory listener.
func startBufServer(t *testing.T) (pb.AuthServiceClient, *repomanager.MemoryRepositoryManager) {
	t.Helper()

	key, err := auth.NewSigningKey([]byte("0123456789abcdef0123456789abcdef"), "tokenkeeper-test", "tokenkeeper-test-clients")
	require.NoError(t, err)
	codec := auth.NewCodec(key, time.Minute, timex.SystemClock{})
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	repos := repomanager.NewMemoryRepositoryManager()
	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	_, err = repos.Users().Create(context.Background(), &models.Principal{ID: 42, Email: "user@example.com", PasswordHash: hash, IsActive: true})
	require.NoError(t, err)

	svc := services.NewSessionService(repos, auth.NewIssuer(codec, 15*time.Minute, time.Hour), auth.NewValidator(codec), hasher)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewGRPCServer("bufconn", logging.Nop{}, svc)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	return pb.NewAuthServiceClient(conn), repos
}

func TestAuthService_EndToEnd(t *testing.T) {
	client, _ := startBufServer(t)
	ctx := context.Background()

	ping, err := client.Ping(ctx, &pb.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	_, err = client.Login(ctx, &pb.LoginRequest{Email: "user@example.com", Password: "nope"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, common.CodeInvalidCredentials, status.Convert(err).Message())

	first, err := client.Login(ctx, &pb.LoginRequest{Email: "user@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NotEmpty(t, first.AccessToken)

	rotated, err := client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	_, err = client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, common.CodeRefreshTokenRevoked, status.Convert(err).Message())

	_, err = client.Sessions(ctx, &pb.SessionsRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, rotated.AccessToken)
	list, err := client.Sessions(authed, &pb.SessionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, "bufconn", list.Sessions[0].IpAddress)

	out, err := client.LogoutEverywhere(authed, &pb.LogoutEverywhereRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Revoked)

	_, err = client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, common.CodeRefreshTokenRevoked, status.Convert(err).Message())

	_, err = client.Logout(ctx, &pb.LogoutRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
}
