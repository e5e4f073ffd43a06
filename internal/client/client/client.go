package client

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/models"
)

type Client interface {
	Close() error
	Login(ctx context.Context, email string, password []byte) (*models.Tokens, error)
	Refresh(ctx context.Context) (*models.Tokens, error)
	Logout(ctx context.Context) error
	LogoutEverywhere(ctx context.Context) (int64, error)
	Sessions(ctx context.Context) ([]models.Session, error)
	Ping(ctx context.Context) error
	// Tokens returns the pair currently held, which may have been rotated
	// by a transparent refresh.
	Tokens() *models.Tokens
	SetTokens(t *models.Tokens)
}
