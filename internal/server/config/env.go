package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests.
var loadDotEnv = func() error { return godotenv.Load() }

// parseEnv overlays values from environment variables. A .env file in the
// working directory, if present, is loaded first and never overrides
// variables already set in the process environment.
//
// Supported variables:
//
//	GRPC_ADDR, HTTP_ADDR, DATABASE_DSN
//	AUTH_SECRET, AUTH_ISSUER, AUTH_AUDIENCE
//	ACCESS_TOKEN_TTL_MINUTES, REFRESH_TOKEN_TTL_DAYS, CLOCK_SKEW_MINUTES
//	SERIALIZE_SUBJECT (true/false), CLEANUP_CRON
//	CACHE_BACKEND, REDIS_ADDR, CACHE_TTL (Go duration)
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
//	CORS_ALLOWED_ORIGINS (comma separated), LOG_LEVEL, LOG_FORMAT
//
// Values that fail to parse are ignored.
func parseEnv(config *Config) {
	_ = loadDotEnv()

	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "AUTH_SECRET")
	envString(&config.Issuer, "AUTH_ISSUER")
	envString(&config.Audience, "AUTH_AUDIENCE")
	envUnits(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL_MINUTES", time.Minute)
	envUnits(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL_DAYS", 24*time.Hour)
	envUnits(&config.ClockSkew, "CLOCK_SKEW_MINUTES", time.Minute)
	if val := os.Getenv("SERIALIZE_SUBJECT"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.SerializeSubject = b
		}
	}
	envString(&config.CleanupCron, "CLEANUP_CRON")
	envString(&config.CacheBackend, "CACHE_BACKEND")
	envString(&config.RedisAddr, "REDIS_ADDR")
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = d
		}
	}
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		config.CORSAllowedOrigins = splitList(val)
	}
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.LogFormat, "LOG_FORMAT")
}

func envString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envUnits(dst *time.Duration, key string, unit time.Duration) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = time.Duration(n) * unit
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
