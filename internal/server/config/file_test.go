package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseFile_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathJSON := writeTempJSON(t, dir, "server.json", map[string]any{
		"endpoint_addr_grpc":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "0123456789abcdef0123456789abcdef",
		"issuer":                          "issuer-from-json",
		"access_token_validity_duration":  "15m",
		"refresh_token_validity_duration": 86400000000000,
		"clock_skew":                      "0s",
		"serialize_subject":               false,
		"cors_allowed_origins":            []string{"https://app.example"},
		"s3_bucket":                       "audit",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathJSON}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFile(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.SecretKey)
		assert.Equal(t, "issuer-from-json", cfg.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 24*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, time.Duration(0), cfg.ClockSkew)
		assert.False(t, cfg.SerializeSubject)
		assert.Equal(t, []string{"https://app.example"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "audit", cfg.S3Bucket)

		// untouched fields keep their defaults
		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
		assert.Equal(t, "tokenkeeper-clients", cfg.Audience)
	})

	t.Run("loads from yaml", func(t *testing.T) {
		path := filepath.Join(dir, "server.yaml")
		src := "endpoint_addr_http: \":9090\"\n" +
			"cache_backend: redis\n" +
			"redis_addr: redis:6379\n" +
			"cache_ttl: 1m\n" +
			"cleanup_cron: \"*/5 * * * *\"\n" +
			"clock_skew: 2m\n"
		require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFile(cfg)

		assert.Equal(t, ":9090", cfg.EndpointAddrHTTP)
		assert.Equal(t, CacheRedis, cfg.CacheBackend)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, time.Minute, cfg.CacheTTL)
		assert.Equal(t, "*/5 * * * *", cfg.CleanupCron)
		assert.Equal(t, 2*time.Minute, cfg.ClockSkew)
		assert.True(t, cfg.SerializeSubject)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrGRPC:            "defaults:1234",
			SecretKey:                   "key",
			AccessTokenValidityDuration: 2 * time.Minute,
		}
		parseFile(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseFile(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.yml")}

		cfg := &Config{}
		require.Panics(t, func() { parseFile(cfg) })
	})
}
