// Package httpapi exposes SessionService as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Sessions is the part of services.SessionService the HTTP API needs.
type Sessions interface {
	Login(ctx context.Context, req services.LoginRequest) (*auth.TokenPair, error)
	Refresh(ctx context.Context, req services.RefreshRequest) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutEverywhere(ctx context.Context, subjectID int64) (int64, error)
	Sessions(ctx context.Context, subjectID int64) ([]*models.RefreshToken, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type Server struct {
	address        string
	sessions       Sessions
	logger         logging.Logger
	allowedOrigins []string
}

func NewServer(a string, l logging.Logger, s Sessions, allowedOrigins []string) *Server {
	return &Server{
		address:        a,
		logger:         l.With("module", "http_server"),
		sessions:       s,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the chi mux with every route mounted.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ping", s.Ping)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.Login)
		r.Post("/refresh", s.Refresh)
		r.Post("/logout", s.Logout)

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.Post("/logout-all", s.LogoutEverywhere)
			r.Get("/sessions", s.Sessions)
		})
	})

	return r
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
