package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/regbot/core/config"
	coredatabase "github.com/m3rciful/regbot/core/database"
	"github.com/m3rciful/regbot/core/logger"
	coreredis "github.com/m3rciful/regbot/core/redis"
)

// Options control the shared infrastructure bootstrap. Nil hooks use the
// core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Redis is dialed only when Redis.URL is set.
	Redis coreredis.Config

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	ConnectRedis func(coreredis.Config) (*redis.Client, error)
}

// Result holds the infrastructure created by Run.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every connection in the result.
func (r *Result) Close() {
	if r == nil {
		return
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
}

// Run initializes the logger, applies migrations, and opens the database
// and optional Redis connections. On error nothing is left open.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}

	if opts.Redis.URL == "" {
		logger.Redis.Info("redis disabled", slog.String("event", "redis.connect"), slog.String("status", "skip"))
		return res, nil
	}
	connectRedis := opts.ConnectRedis
	if connectRedis == nil {
		connectRedis = coreredis.Connect
	}
	client, err := connectRedis(opts.Redis)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
	}
	res.Redis = client
	return res, nil
}
