// Package services contains server-side business logic. This file implements
// SessionService, which handles login, refresh token rotation, logout and
// access token authentication.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/cache"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// PasswordHasher verifies stored password hashes. Compare must run in
// constant time with respect to the plain password.
type PasswordHasher interface {
	Compare(hashed, plain string) bool
	DummyHash() string
}

// TokenIssuer mints token pairs. *auth.Issuer satisfies it.
type TokenIssuer interface {
	IssueTokenPair(subjectID int64, email string, extra map[string]any) (*auth.TokenPair, error)
	AccessTTL() time.Duration
}

// TokenValidator checks presented tokens. *auth.Validator satisfies it.
type TokenValidator interface {
	ValidateAccess(token string) (*auth.Claims, error)
	ValidateRefresh(token string) (*auth.Claims, error)
}

type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

type RefreshRequest struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// SessionService runs the token lifecycle on top of a RepositoryManager.
// Every method takes the subject explicitly; nothing is read from ctx.
type SessionService struct {
	repos     repomanager.RepositoryManager
	issuer    TokenIssuer
	validator TokenValidator
	hasher    PasswordHasher
	clock     timex.Clock
	log       logging.Logger

	cache        cache.Cache
	principalTTL time.Duration
	cutoffTTL    time.Duration

	serializeSubject bool
}

type SessionOption func(*SessionService)

func WithSessionClock(c timex.Clock) SessionOption {
	return func(s *SessionService) { s.clock = c }
}

func WithSessionLogger(l logging.Logger) SessionOption {
	return func(s *SessionService) { s.log = l }
}

// WithCache enables the access cutoff and the principal cache. Principal
// state is cached for principalTTL.
func WithCache(c cache.Cache, principalTTL time.Duration) SessionOption {
	return func(s *SessionService) {
		s.cache = c
		s.principalTTL = principalTTL
	}
}

// WithCutoffTTL sets how long a logout-everywhere cutoff is remembered. It
// should cover the access token lifetime plus clock skew.
func WithCutoffTTL(d time.Duration) SessionOption {
	return func(s *SessionService) { s.cutoffTTL = d }
}

// WithSubjectSerialization makes refresh and logout-everywhere lock the
// principal row before touching its tokens.
func WithSubjectSerialization(on bool) SessionOption {
	return func(s *SessionService) { s.serializeSubject = on }
}

func NewSessionService(m repomanager.RepositoryManager, issuer TokenIssuer, validator TokenValidator, hasher PasswordHasher, opts ...SessionOption) *SessionService {
	s := &SessionService{
		repos:            m,
		issuer:           issuer,
		validator:        validator,
		hasher:           hasher,
		clock:            timex.SystemClock{},
		log:              logging.Nop{},
		cutoffTTL:        issuer.AccessTTL(),
		serializeSubject: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and starts a new session. Existing sessions of
// the principal are left alone.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*auth.TokenPair, error) {
	p, err := s.repos.Users().FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Compare(s.hasher.DummyHash(), req.Password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, internal(err)
	}
	if !s.hasher.Compare(p.PasswordHash, req.Password) {
		return nil, common.ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, common.ErrAccountDeactivated
	}

	pair, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	if err := s.repos.RefreshTokens().Insert(ctx, newRow(pair, p.ID, req.IPAddress, req.UserAgent)); err != nil {
		return nil, internal(err)
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is returned, atomically. Replaying a rotated token yields
// common.ErrRefreshTokenRevoked.
func (s *SessionService) Refresh(ctx context.Context, req RefreshRequest) (*auth.TokenPair, error) {
	// An expired JWT still goes to the store, which reports the precise state.
	if _, err := s.validator.ValidateRefresh(req.RefreshToken); err != nil && !errors.Is(err, common.ErrTokenExpired) {
		return nil, common.ErrInvalidRefreshToken
	}

	var pair *auth.TokenPair
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		now := s.clock.Now()
		tokens := r.RefreshTokens()

		row, err := tokens.FindValid(ctx, req.RefreshToken, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return explainMiss(ctx, tokens, req.RefreshToken, now)
			}
			return internal(err)
		}

		p, err := s.lockPrincipal(ctx, r.Users(), row.SubjectID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return internal(err)
		}
		if !p.IsActive {
			return common.ErrAccountDeactivated
		}

		next, err := s.issue(p)
		if err != nil {
			return err
		}

		changed, err := tokens.Revoke(ctx, row.Token, now)
		if err != nil {
			return internal(err)
		}
		if !changed {
			return common.ErrRefreshTokenRevoked
		}

		if err := tokens.Insert(ctx, newRow(next, p.ID, req.IPAddress, req.UserAgent)); err != nil {
			return internal(err)
		}
		pair = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a single refresh token. Unknown and already revoked tokens
// are not an error.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.repos.RefreshTokens().Revoke(ctx, refreshToken, s.clock.Now()); err != nil {
		return internal(err)
	}
	return nil
}

// LogoutEverywhere revokes every live refresh token of subjectID and returns
// how many were revoked. Access tokens issued before the call stop being
// accepted by Authenticate when a cache is configured.
func (s *SessionService) LogoutEverywhere(ctx context.Context, subjectID int64) (int64, error) {
	now := s.clock.Now()

	var n int64
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if s.serializeSubject {
			if _, err := r.Users().LockForUpdate(ctx, subjectID); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return internal(err)
			}
		}
		var err error
		n, err = r.RefreshTokens().RevokeAllForSubject(ctx, subjectID, now)
		if err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.setCutoff(ctx, subjectID, now)
	s.log.Info(ctx, "revoked all refresh tokens", "subject_id", subjectID, "count", n)
	return n, nil
}

// DeactivateAccount disables the principal and revokes all of its sessions.
func (s *SessionService) DeactivateAccount(ctx context.Context, subjectID int64) error {
	now := s.clock.Now()

	var n int64
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if _, err := r.Users().LockForUpdate(ctx, subjectID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return internal(err)
		}
		if err := r.Users().SetActive(ctx, subjectID, false); err != nil {
			return internal(err)
		}
		var err error
		n, err = r.RefreshTokens().RevokeAllForSubject(ctx, subjectID, now)
		if err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, principalKey(subjectID)); err != nil {
			s.log.Warn(ctx, "principal cache invalidation failed", "subject_id", subjectID, "error", err)
		}
	}
	s.setCutoff(ctx, subjectID, now)
	s.log.Info(ctx, "account deactivated", "subject_id", subjectID, "revoked", n)
	return nil
}

// Authenticate validates an access token for a request. Expired tokens yield
// common.ErrTokenExpired so clients know to refresh; any other failure is
// common.ErrInvalidAccessToken.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.validator.ValidateAccess(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidAccessToken
	}
	subjectID, err := claims.SubjectID()
	if err != nil || claims.IssuedAt == nil {
		return nil, common.ErrInvalidAccessToken
	}

	if s.cache != nil {
		var cutoff int64
		ok, err := s.cache.Get(ctx, cutoffKey(subjectID), &cutoff)
		if err != nil {
			s.log.Warn(ctx, "access cutoff lookup failed", "subject_id", subjectID, "error", err)
		}
		if ok && claims.IssuedAt.Unix() < cutoff {
			return nil, common.ErrInvalidAccessToken
		}
	}

	st, err := s.principalState(ctx, subjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidAccessToken
		}
		return nil, internal(err)
	}
	if !st.Active {
		return nil, common.ErrAccountDeactivated
	}
	return claims, nil
}

// Sessions lists the unswept refresh tokens of subjectID, revoked ones
// included, newest first.
func (s *SessionService) Sessions(ctx context.Context, subjectID int64) ([]*models.RefreshToken, error) {
	rows, err := s.repos.RefreshTokens().ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, internal(err)
	}
	return rows, nil
}

// --- helpers below ---

type principalState struct {
	ID     int64 `json:"id"`
	Active bool  `json:"active"`
}

func principalKey(id int64) string { return "principal:" + strconv.FormatInt(id, 10) }
func cutoffKey(id int64) string    { return "cutoff:" + strconv.FormatInt(id, 10) }

func (s *SessionService) principalState(ctx context.Context, id int64) (principalState, error) {
	load := func(ctx context.Context) (principalState, error) {
		p, err := s.repos.Users().FindByID(ctx, id)
		if err != nil {
			return principalState{}, err
		}
		return principalState{ID: p.ID, Active: p.IsActive}, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return cache.GetOrSet(ctx, s.cache, principalKey(id), s.principalTTL, load)
}

func (s *SessionService) setCutoff(ctx context.Context, subjectID int64, at time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cutoffKey(subjectID), at.Unix(), s.cutoffTTL); err != nil {
		s.log.Warn(ctx, "access cutoff not recorded", "subject_id", subjectID, "error", err)
	}
}

func (s *SessionService) lockPrincipal(ctx context.Context, repo users.Repository, id int64) (*models.Principal, error) {
	if s.serializeSubject {
		return repo.LockForUpdate(ctx, id)
	}
	return repo.FindByID(ctx, id)
}

func (s *SessionService) issue(p *models.Principal) (*auth.TokenPair, error) {
	extra := map[string]any{auth.ClaimEmailVerified: p.IsEmailVerified}
	if p.OAuthProvider != "" {
		extra[auth.ClaimOAuthProvider] = p.OAuthProvider
	}
	pair, err := s.issuer.IssueTokenPair(p.ID, p.Email, extra)
	if err != nil {
		return nil, fmt.Errorf("%w: issue tokens: %w", common.ErrorInternal, err)
	}
	return pair, nil
}

// explainMiss turns a FindValid miss into the specific client error.
func explainMiss(ctx context.Context, tokens refreshtokens.Repository, token string, now time.Time) error {
	row, err := tokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidRefreshToken
		}
		return internal(err)
	}
	switch row.State(now) {
	case models.TokenRevoked:
		return common.ErrRefreshTokenRevoked
	case models.TokenExpired:
		return common.ErrRefreshTokenExpired
	default:
		return common.ErrInvalidRefreshToken
	}
}

func newRow(pair *auth.TokenPair, subjectID int64, ip, ua string) *models.RefreshToken {
	return &models.RefreshToken{
		Token:     pair.RefreshToken,
		SubjectID: subjectID,
		IssuedAt:  pair.IssuedAt,
		ExpiresAt: pair.RefreshExpiry,
		IPAddress: ip,
		UserAgent: ua,
	}
}

func internal(err error) error {
	if errors.Is(err, common.ErrorInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}
