package grpc

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/golang-jwt/jwt/v5"
)

type fakeSessions struct {
	lastLogin   services.LoginRequest
	lastRefresh services.RefreshRequest
	lastLogout  string
	lastSubject int64

	pair *auth.TokenPair
	err  error

	authSubject int64
	authErr     error

	revoked int64
	rows    []*models.RefreshToken
}

func (f *fakeSessions) Login(_ context.Context, req services.LoginRequest) (*auth.TokenPair, error) {
	f.lastLogin = req
	return f.pair, f.err
}

func (f *fakeSessions) Refresh(_ context.Context, req services.RefreshRequest) (*auth.TokenPair, error) {
	f.lastRefresh = req
	return f.pair, f.err
}

func (f *fakeSessions) Logout(_ context.Context, token string) error {
	f.lastLogout = token
	return f.err
}

func (f *fakeSessions) LogoutEverywhere(_ context.Context, subjectID int64) (int64, error) {
	f.lastSubject = subjectID
	return f.revoked, f.err
}

func (f *fakeSessions) Sessions(_ context.Context, subjectID int64) ([]*models.RefreshToken, error) {
	f.lastSubject = subjectID
	return f.rows, f.err
}

func (f *fakeSessions) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &auth.Claims{
		TokenUse:         auth.UseAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(f.authSubject, 10)},
	}, nil
}
