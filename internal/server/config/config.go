// Package config handles configuration for the server component:
// defaults, a JSON or YAML file overlay, environment variables and
// command-line flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"time"
)

// MinSecretKeyLength is the minimum HS256 key size in bytes.
const MinSecretKeyLength = 32

// Config holds runtime settings for the TokenKeeper server.
//
// Fields:
//   - EndpointAddrGRPC / EndpointAddrHTTP: bind addresses of the two transports.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default in prod.
//   - Issuer / Audience: stamped into every token and required on validation.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - ClockSkew: leeway applied when checking token expiry.
//   - SerializeSubject: lock the principal row during refresh and logout-everywhere.
//   - CleanupCron: schedule of the expired refresh token sweep (UTC).
//   - CacheBackend / RedisAddr / CacheTTL: cache used for principal lookups and access cutoffs.
//   - S3*: object storage used to archive swept rows. An empty bucket disables archiving.
type Config struct {
	EndpointAddrGRPC             string
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	SecretKey                    string
	Issuer                       string
	Audience                     string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	ClockSkew                    time.Duration
	SerializeSubject             bool
	CleanupCron                  string
	CacheBackend                 string
	RedisAddr                    string
	CacheTTL                     time.Duration
	S3RootUser                   string
	S3RootPassword               string
	S3Bucket                     string
	S3Region                     string
	S3BaseEndpoint               string
	CORSAllowedOrigins           []string
	LogLevel                     string
	LogFormat                    string
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key is public; override it outside development.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "tokenkeeper-dev-secret-change-me-now"
	c.Issuer = "tokenkeeper"
	c.Audience = "tokenkeeper-clients"
	c.AccessTokenValidityDuration = 60 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.ClockSkew = 5 * time.Minute
	c.SerializeSubject = true
	c.CleanupCron = "0 2 * * *"
	c.CacheBackend = CacheMemory
	c.RedisAddr = "127.0.0.1:6379"
	c.CacheTTL = 30 * time.Second
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.CORSAllowedOrigins = []string{"*"}
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON/YAML file, the environment (including .env) and
// finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SecretKey) < MinSecretKeyLength {
		errs = append(errs, fmt.Errorf("secret key must be at least %d bytes", MinSecretKeyLength))
	}
	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer must be set"))
	}
	if c.Audience == "" {
		errs = append(errs, errors.New("audience must be set"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token validity must be positive"))
	}
	if c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("refresh token validity must be positive"))
	}
	if c.ClockSkew < 0 {
		errs = append(errs, errors.New("clock skew must not be negative"))
	}
	if c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis {
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	return errors.Join(errs...)
}
