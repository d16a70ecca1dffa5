// Package server wires the authkit server together: it resolves the keys,
// builds the password hasher and token codec, connects Postgres and Redis
// and serves the HTTP and gRPC APIs until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/authkit/internal/auth/keyring"
	"github.com/dmitrijs2005/authkit/internal/auth/pwd"
	"github.com/dmitrijs2005/authkit/internal/auth/token"
	"github.com/dmitrijs2005/authkit/internal/logging"
	"github.com/dmitrijs2005/authkit/internal/server/config"
	"github.com/dmitrijs2005/authkit/internal/server/httpapi"
	"github.com/dmitrijs2005/authkit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkit/internal/server/saltcache"
	"github.com/dmitrijs2005/authkit/internal/server/services"
	"github.com/dmitrijs2005/authkit/internal/workerpool"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/authkit/internal/server/grpc"
)

// Runner is a server that serves until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	pool    *workerpool.Pool
	salts   *saltcache.Cache
	runners []Runner
}

// loadKeyring picks the key source named in the config.
func loadKeyring(ctx context.Context, c *config.Config) (*keyring.Keyring, error) {
	switch c.KeySource {
	case config.KeySourceS3:
		src := &keyring.S3Source{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Object:       c.S3KeyObject,
		}
		return src.Load(ctx)
	default:
		return keyring.FromEncoded(c.PwdKey, c.TokenKey)
	}
}

// initAuth installs the process keyring and default password hasher and
// returns them as installed.
func initAuth(ctx context.Context, c *config.Config, pool *workerpool.Pool) (*keyring.Keyring, *pwd.Hasher, error) {
	loaded, err := loadKeyring(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("keyring: %w", err)
	}
	if err := keyring.Init(loaded); err != nil {
		return nil, nil, fmt.Errorf("keyring: %w", err)
	}
	kr, err := keyring.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("keyring: %w", err)
	}

	h, err := pwd.NewHasher(kr.PwdKey, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("password hasher: %w", err)
	}
	if err := pwd.Init(h); err != nil {
		return nil, nil, fmt.Errorf("password hasher: %w", err)
	}
	hasher, err := pwd.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("password hasher: %w", err)
	}

	return kr, hasher, nil
}

// NewApp runs the startup sequence. Any failure is fatal for the process.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	pool := workerpool.New(c.HashWorkers, c.HashQueueSize)

	kr, hasher, err := initAuth(ctx, c, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	codec, err := token.NewCodec(kr.TokenKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	salts, err := saltcache.NewFromURL(ctx, c.RedisURL, c.SaltCacheTTL, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("salt cache: %w", err)
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		pool.Close()
		_ = salts.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		pool.Close()
		_ = salts.Close()
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	us := services.NewUserService(db, rm, hasher, codec, salts, c.TokenDuration, logger)

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		pool:   pool,
		salts:  salts,
		runners: []Runner{
			httpapi.NewServer(c.HTTPAddr, logger, us),
			gs.NewGRPCServer(c.GRPCAddr, logger, us),
		},
	}

	return app, nil
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

// runAll runs every runner and stops the rest when one of them fails.
func runAll(ctx context.Context, runners []Runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	err := runAll(ctx, app.runners)

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")

	return err
}

func (app *App) close(ctx context.Context) {
	app.pool.Close()
	if err := app.salts.Close(); err != nil {
		app.logger.Warn(ctx, "close salt cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "close db", "error", err)
	}
}
