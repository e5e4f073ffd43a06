// Package proto holds the wire types and service descriptor of
// tokenkeeper.v1.AuthService. Messages travel as JSON through the codec
// registered in codec.go.
package proto

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by Login and Refresh. Expiries are unix
// seconds.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct{}

type LogoutEverywhereRequest struct{}

type LogoutEverywhereResponse struct {
	Revoked int64 `json:"revoked"`
}

type SessionsRequest struct{}

type Session struct {
	Id        int64  `json:"id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	RevokedAt int64  `json:"revoked_at,omitempty"`
	IpAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type SessionsResponse struct {
	Sessions []*Session `json:"sessions"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
