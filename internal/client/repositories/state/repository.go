// Package state persists the CLI's token pair between invocations.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/filex"
)

type Repository interface {
	// Load returns nil tokens and no error when nothing is stored.
	Load(ctx context.Context) (*models.Tokens, error)
	Save(ctx context.Context, t *models.Tokens) error
	Clear(ctx context.Context) error
}

// FileRepository keeps the tokens as JSON in a single 0600 file.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) (*FileRepository, error) {
	p, err := filex.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &FileRepository{path: p}, nil
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Load(_ context.Context) (*models.Tokens, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", r.path, err)
	}

	var t models.Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", r.path, err)
	}
	return &t, nil
}

func (r *FileRepository) Save(_ context.Context, t *models.Tokens) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.WritePrivate(r.path, data); err != nil {
		return fmt.Errorf("failed to save state %s: %w", r.path, err)
	}
	return nil
}

func (r *FileRepository) Clear(_ context.Context) error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear state %s: %w", r.path, err)
	}
	return nil
}
