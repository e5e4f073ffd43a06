package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const subjectIDKey ctxKey = "subjectID"

func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, common.ErrInvalidAccessToken)
			return
		}

		claims, err := s.sessions.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		subjectID, err := claims.SubjectID()
		if err != nil {
			writeError(w, common.ErrInvalidAccessToken)
			return
		}

		ctx := context.WithValue(r.Context(), subjectIDKey, subjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", chimiddleware.GetReqID(r.Context()),
			"duration", time.Since(started))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
	return token, token != ""
}

func subjectFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(subjectIDKey).(int64)
	return id, ok
}
