package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeClient struct {
	tokens models.Tokens

	LoginRet *models.Tokens
	LoginErr error

	RefreshRet *models.Tokens
	RefreshErr error

	LogoutErr error

	LogoutAllRet int64
	LogoutAllErr error

	SessionsRet []models.Session
	SessionsErr error
	// rotate simulates an interceptor refresh during Sessions.
	rotate *models.Tokens

	closed bool
}

func (f *fakeClient) Close() error { f.closed = true; return nil }
func (f *fakeClient) Login(_ context.Context, email string, _ []byte) (*models.Tokens, error) {
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	f.tokens = *f.LoginRet
	return f.LoginRet, nil
}
func (f *fakeClient) Refresh(context.Context) (*models.Tokens, error) {
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	f.tokens = *f.RefreshRet
	return f.RefreshRet, nil
}
func (f *fakeClient) Logout(context.Context) error {
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.tokens = models.Tokens{}
	return nil
}
func (f *fakeClient) LogoutEverywhere(context.Context) (int64, error) {
	if f.LogoutAllErr != nil {
		return 0, f.LogoutAllErr
	}
	f.tokens = models.Tokens{}
	return f.LogoutAllRet, nil
}
func (f *fakeClient) Sessions(context.Context) ([]models.Session, error) {
	if f.rotate != nil {
		f.tokens = *f.rotate
	}
	return f.SessionsRet, f.SessionsErr
}
func (f *fakeClient) Ping(context.Context) error { return nil }
func (f *fakeClient) Tokens() *models.Tokens    { t := f.tokens; return &t }
func (f *fakeClient) SetTokens(t *models.Tokens) {
	if t == nil {
		f.tokens = models.Tokens{}
		return
	}
	f.tokens = *t
}

type memState struct {
	saved   *models.Tokens
	loadErr error
	saveErr error
}

func (m *memState) Load(context.Context) (*models.Tokens, error) { return m.saved, m.loadErr }
func (m *memState) Save(_ context.Context, t *models.Tokens) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = t
	return nil
}
func (m *memState) Clear(context.Context) error { m.saved = nil; return nil }

var _ client.Client = (*fakeClient)(nil)

// ---- tests ----

func TestLogin_SavesTokens(t *testing.T) {
	fc := &fakeClient{LoginRet: &models.Tokens{AccessToken: "A", RefreshToken: "R"}}
	st := &memState{}
	svc := NewSessionService(fc, st)

	tok, err := svc.Login(context.Background(), "u@example.com", []byte("pw"))
	require.NoError(t, err)
	require.Equal(t, "R", tok.RefreshToken)
	require.Equal(t, "R", st.saved.RefreshToken)
}

func TestLogin_ErrorKeepsState(t *testing.T) {
	st := &memState{saved: &models.Tokens{RefreshToken: "old"}}
	svc := NewSessionService(&fakeClient{LoginErr: common.ErrInvalidCredentials}, st)

	_, err := svc.Login(context.Background(), "u", []byte("x"))
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	require.Equal(t, "old", st.saved.RefreshToken)
}

func TestLogin_SaveError(t *testing.T) {
	fc := &fakeClient{LoginRet: &models.Tokens{RefreshToken: "R"}}
	svc := NewSessionService(fc, &memState{saveErr: errors.New("disk full")})

	_, err := svc.Login(context.Background(), "u", []byte("pw"))
	require.ErrorContains(t, err, "disk full")
}

func TestCommands_RequireLogin(t *testing.T) {
	svc := NewSessionService(&fakeClient{}, &memState{})
	ctx := context.Background()

	_, err := svc.Refresh(ctx)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	require.ErrorIs(t, svc.Logout(ctx), client.ErrNotLoggedIn)
	_, err = svc.LogoutEverywhere(ctx)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	_, err = svc.Sessions(ctx)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestRefresh_RotatesSavedPair(t *testing.T) {
	fc := &fakeClient{RefreshRet: &models.Tokens{AccessToken: "A2", RefreshToken: "R2"}}
	st := &memState{saved: &models.Tokens{AccessToken: "A1", RefreshToken: "R1"}}
	svc := NewSessionService(fc, st)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "R2", st.saved.RefreshToken)
}

func TestRefresh_RevokedKeepsState(t *testing.T) {
	fc := &fakeClient{RefreshErr: common.ErrRefreshTokenRevoked}
	st := &memState{saved: &models.Tokens{RefreshToken: "R1"}}
	svc := NewSessionService(fc, st)

	_, err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, common.ErrRefreshTokenRevoked)
	require.Equal(t, "R1", st.saved.RefreshToken)
}

func TestLogout_ClearsState(t *testing.T) {
	st := &memState{saved: &models.Tokens{RefreshToken: "R1"}}
	svc := NewSessionService(&fakeClient{}, st)

	require.NoError(t, svc.Logout(context.Background()))
	require.Nil(t, st.saved)
}

func TestLogoutEverywhere_ClearsState(t *testing.T) {
	st := &memState{saved: &models.Tokens{AccessToken: "A", RefreshToken: "R1"}}
	svc := NewSessionService(&fakeClient{LogoutAllRet: 4}, st)

	n, err := svc.LogoutEverywhere(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Nil(t, st.saved)
}

func TestSessions_PersistsRotatedPair(t *testing.T) {
	fc := &fakeClient{
		SessionsRet: []models.Session{{ID: 1}},
		rotate:      &models.Tokens{AccessToken: "A2", RefreshToken: "R2"},
	}
	st := &memState{saved: &models.Tokens{AccessToken: "A1", RefreshToken: "R1"}}
	svc := NewSessionService(fc, st)

	out, err := svc.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "R2", st.saved.RefreshToken)
}

func TestLoadError_Propagates(t *testing.T) {
	svc := NewSessionService(&fakeClient{}, &memState{loadErr: errors.New("corrupt")})
	_, err := svc.Sessions(context.Background())
	require.ErrorContains(t, err, "corrupt")
}

func TestClose(t *testing.T) {
	fc := &fakeClient{}
	require.NoError(t, NewSessionService(fc, &memState{}).Close())
	require.True(t, fc.closed)
}
