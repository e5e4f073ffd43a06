// Package server initializes and runs the TokenKeeper server.
// It selects storage, cache and archive backends from config, schedules the
// refresh token sweep and runs the gRPC and HTTP transports until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/archive"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/cache"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	sessions *services.SessionService
	sweeper  *services.TokenSweeper
}

// openDB is swapped in tests.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	clock := timex.SystemClock{}

	repos, err := newRepositoryManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	key, err := auth.NewSigningKey([]byte(c.SecretKey), c.Issuer, c.Audience)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	codec := auth.NewCodec(key, c.ClockSkew, clock)
	issuer := auth.NewIssuer(codec, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	a, err := newArchiver(ctx, c, clock)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("archive init error: %w", err)
	}

	sessions := services.NewSessionService(repos, issuer, auth.NewValidator(codec), auth.BcryptHasher{},
		services.WithSessionClock(clock),
		services.WithSessionLogger(logger),
		services.WithCache(newCache(c), c.CacheTTL),
		services.WithCutoffTTL(c.AccessTokenValidityDuration+c.ClockSkew),
		services.WithSubjectSerialization(c.SerializeSubject),
	)

	return &App{
		config:   c,
		logger:   logger,
		repos:    repos,
		sessions: sessions,
		sweeper:  services.NewTokenSweeper(repos, a, clock, logger),
	}, nil
}

// newRepositoryManager returns the in-memory store for an empty DSN and a
// migrated PostgreSQL store otherwise.
func newRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := repomanager.NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func newCache(c *config.Config) cache.Cache {
	if c.CacheBackend == config.CacheRedis {
		return cache.NewRedis(redis.NewClient(&redis.Options{Addr: c.RedisAddr}), "tokenkeeper")
	}
	return cache.NewMemory(c.CacheTTL, 2*c.CacheTTL)
}

func newArchiver(ctx context.Context, c *config.Config, clock timex.Clock) (archive.Archiver, error) {
	if c.S3Bucket == "" {
		return archive.Nop{}, nil
	}
	return archive.NewS3Archiver(ctx, archive.S3Config{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	}, clock)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.sessions, app.config.CORSAllowedOrigins)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is canceled, a signal arrives or a transport fails.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	stopSweeper, err := app.sweeper.Start(ctx, app.config.CleanupCron)
	if err != nil {
		_ = app.repos.Close()
		return fmt.Errorf("cleanup schedule: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	stopSweeper()
	app.logger.Info(ctx, "Stopped")
	return app.repos.Close()
}
