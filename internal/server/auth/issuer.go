package auth

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token minted at the same instant.
type TokenPair struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
	IssuedAt      time.Time
}

// Issuer mints tokens. It never touches storage: persisting the refresh
// token is the caller's job.
type Issuer struct {
	codec      *Codec
	clock      timex.Clock
	newID      func() string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type IssuerOption func(*Issuer)

// WithIDGenerator replaces uuid.NewString as the jti source.
func WithIDGenerator(fn func() string) IssuerOption {
	return func(i *Issuer) { i.newID = fn }
}

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c timex.Clock) IssuerOption {
	return func(i *Issuer) { i.clock = c }
}

func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		codec:      codec,
		clock:      timex.SystemClock{},
		newID:      uuid.NewString,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken mints an access token for subjectID carrying email and
// extra claims. Reserved keys in extra are ignored.
func (i *Issuer) IssueAccessToken(subjectID int64, email string, extra map[string]any) (string, time.Time, error) {
	return i.issueAccess(i.now(), subjectID, email, extra)
}

// IssueRefreshToken mints a refresh token. It carries no PII.
func (i *Issuer) IssueRefreshToken(subjectID int64) (string, time.Time, error) {
	return i.issueRefresh(i.now(), subjectID)
}

// IssueTokenPair mints both tokens at one instant.
func (i *Issuer) IssueTokenPair(subjectID int64, email string, extra map[string]any) (*TokenPair, error) {
	now := i.now()

	access, accessExp, err := i.issueAccess(now, subjectID, email, extra)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.issueRefresh(now, subjectID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:   access,
		AccessExpiry:  accessExp,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExp,
		IssuedAt:      now,
	}, nil
}

// now is truncated to whole seconds, the resolution of NumericDate, so the
// returned expiries match the encoded exp claim exactly.
func (i *Issuer) now() time.Time {
	return i.clock.Now().UTC().Truncate(time.Second)
}

func (i *Issuer) issueAccess(now time.Time, subjectID int64, email string, extra map[string]any) (string, time.Time, error) {
	exp := now.Add(i.accessTTL)

	var ex map[string]any
	if len(extra) > 0 {
		ex = make(map[string]any, len(extra))
		for k, v := range extra {
			ex[k] = v
		}
	}

	token, err := i.codec.Sign(&Claims{
		Email:            email,
		Authenticated:    true,
		TokenUse:         UseAccess,
		Extra:            ex,
		RegisteredClaims: i.registered(now, subjectID),
	}, exp)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (i *Issuer) issueRefresh(now time.Time, subjectID int64) (string, time.Time, error) {
	exp := now.Add(i.refreshTTL)

	token, err := i.codec.Sign(&Claims{
		TokenUse:         UseRefresh,
		RegisteredClaims: i.registered(now, subjectID),
	}, exp)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (i *Issuer) registered(now time.Time, subjectID int64) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(subjectID, 10),
		ID:       i.newID(),
		IssuedAt: jwt.NewNumericDate(now),
	}
}
