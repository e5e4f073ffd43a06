package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN ("" for the in-memory store)
//	-s string   JWT HMAC secret key
//	-i string   token issuer
//	-n string   token audience
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-k int      clock skew tolerance, minutes
//	-x string   cleanup cron expression
//	-m string   cache backend (memory|redis)
//	-q string   redis address
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name ("" disables archiving)
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. A parse
// error panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-w", "-d", "-s", "-i", "-n", "-t", "-r", "-k", "-x", "-m", "-q", "-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "n", config.Audience, "token audience")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration/(24*time.Hour)), "refresh token validity (in days)")
	clockSkew := fs.Int("k", int(config.ClockSkew.Minutes()), "clock skew tolerance (in minutes)")

	fs.StringVar(&config.CleanupCron, "x", config.CleanupCron, "cleanup cron expression")
	fs.StringVar(&config.CacheBackend, "m", config.CacheBackend, "cache backend (memory|redis)")
	fs.StringVar(&config.RedisAddr, "q", config.RedisAddr, "redis address")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Duration flags override only when passed explicitly.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * 24 * time.Hour
		case "k":
			config.ClockSkew = time.Duration(*clockSkew) * time.Minute
		}
	})
}
