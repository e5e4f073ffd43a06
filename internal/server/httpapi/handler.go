package httpapi

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

type sessionResponse struct {
	ID        int64  `json:"id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	RevokedAt int64  `json:"revoked_at,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	pair, err := s.sessions.Login(r.Context(), services.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, newTokenResponse(pair))
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), services.RefreshRequest{
		RefreshToken: req.RefreshToken,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, newTokenResponse(pair))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	if err := s.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) LogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrInvalidAccessToken)
		return
	}

	n, err := s.sessions.LogoutEverywhere(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]int64{"revoked": n})
}

func (s *Server) Sessions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrInvalidAccessToken)
		return
	}

	rows, err := s.sessions.Sessions(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(rows))
	for _, row := range rows {
		sess := sessionResponse{
			ID:        row.ID,
			IssuedAt:  row.IssuedAt.Unix(),
			ExpiresAt: row.ExpiresAt.Unix(),
			IPAddress: row.IPAddress,
			UserAgent: row.UserAgent,
		}
		if row.RevokedAt != nil {
			sess.RevokedAt = row.RevokedAt.Unix()
		}
		out = append(out, sess)
	}
	writeOK(w, out)
}

func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "OK")
}

func newTokenResponse(p *auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiry.Unix(),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiry.Unix(),
	}
}

// clientIP returns the host part of RemoteAddr, which RealIP has already
// replaced with X-Forwarded-For or X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
