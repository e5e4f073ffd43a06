// Package services contains application services for the authctl CLI.
// SessionService ties the remote client to the local token state so every
// command starts from the saved pair and leaves the latest pair on disk.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/state"
)

type SessionService interface {
	Login(ctx context.Context, email string, password []byte) (*models.Tokens, error)
	Refresh(ctx context.Context) (*models.Tokens, error)
	Logout(ctx context.Context) error
	LogoutEverywhere(ctx context.Context) (int64, error)
	Sessions(ctx context.Context) ([]models.Session, error)
	Close() error
}

type sessionService struct {
	client client.Client
	state  state.Repository
}

func NewSessionService(c client.Client, s state.Repository) SessionService {
	return &sessionService{client: c, state: s}
}

// restore loads the saved pair into the client.
func (s *sessionService) restore(ctx context.Context) error {
	t, err := s.state.Load(ctx)
	if err != nil {
		return err
	}
	if t.Empty() {
		return client.ErrNotLoggedIn
	}
	s.client.SetTokens(t)
	return nil
}

// persist saves whatever pair the client holds now; an interceptor refresh
// may have rotated it during the call.
func (s *sessionService) persist(ctx context.Context) error {
	t := s.client.Tokens()
	if t.Empty() {
		return s.state.Clear(ctx)
	}
	return s.state.Save(ctx, t)
}

func (s *sessionService) Login(ctx context.Context, email string, password []byte) (*models.Tokens, error) {
	t, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := s.state.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sessionService) Refresh(ctx context.Context) (*models.Tokens, error) {
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	t, err := s.client.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh error: %w", err)
	}
	if err := s.state.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Logout revokes the saved refresh token and drops local state.
func (s *sessionService) Logout(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		return err
	}
	if err := s.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout error: %w", err)
	}
	return s.state.Clear(ctx)
}

func (s *sessionService) LogoutEverywhere(ctx context.Context) (int64, error) {
	if err := s.restore(ctx); err != nil {
		return 0, err
	}
	n, err := s.client.LogoutEverywhere(ctx)
	if err != nil {
		_ = s.persist(ctx)
		return 0, fmt.Errorf("logout-all error: %w", err)
	}
	return n, s.state.Clear(ctx)
}

func (s *sessionService) Sessions(ctx context.Context) ([]models.Session, error) {
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	out, err := s.client.Sessions(ctx)
	if perr := s.persist(ctx); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessionService) Close() error {
	return s.client.Close()
}
