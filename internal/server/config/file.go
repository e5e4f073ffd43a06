package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from "false".
//
// Only fields present in the file override the current values.
type FileConfig struct {
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string          `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                  string          `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string          `json:"secret_key" yaml:"secret_key"`
	Issuer                       string          `json:"issuer" yaml:"issuer"`
	Audience                     string          `json:"audience" yaml:"audience"`
	AccessTokenValidityDuration  timex.Duration  `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration  `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	ClockSkew                    *timex.Duration `json:"clock_skew" yaml:"clock_skew"`
	SerializeSubject             *bool           `json:"serialize_subject" yaml:"serialize_subject"`
	CleanupCron                  string          `json:"cleanup_cron" yaml:"cleanup_cron"`
	CacheBackend                 string          `json:"cache_backend" yaml:"cache_backend"`
	RedisAddr                    string          `json:"redis_addr" yaml:"redis_addr"`
	CacheTTL                     timex.Duration  `json:"cache_ttl" yaml:"cache_ttl"`
	S3RootUser                   string          `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                     string          `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                     string          `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	CORSAllowedOrigins           []string        `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	LogLevel                     string          `json:"log_level" yaml:"log_level"`
	LogFormat                    string          `json:"log_format" yaml:"log_format"`
}

// parseFile loads configuration values from the file named by the -c or
// -config flag into config. Files ending in .yaml or .yml are decoded as
// YAML, anything else as JSON. Without the flag nothing is loaded.
//
// If the file cannot be read or decoded, the function panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	if c.ClockSkew != nil {
		config.ClockSkew = c.ClockSkew.Duration
	}
	if c.SerializeSubject != nil {
		config.SerializeSubject = *c.SerializeSubject
	}
	setString(&config.CleanupCron, c.CleanupCron)
	setString(&config.CacheBackend, c.CacheBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.CacheTTL, c.CacheTTL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
