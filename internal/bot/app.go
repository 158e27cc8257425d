package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/regbot/core/bootstrap"
	"github.com/m3rciful/regbot/core/buildinfo"
	corecmd "github.com/m3rciful/regbot/core/cmd"
	"github.com/m3rciful/regbot/core/logger"
	"github.com/m3rciful/regbot/core/ops"
	coretelegram "github.com/m3rciful/regbot/core/telegram"
	"github.com/m3rciful/regbot/core/telegram/commands"
	"github.com/m3rciful/regbot/core/telegram/router"
	appconfig "github.com/m3rciful/regbot/internal/config"
	"github.com/m3rciful/regbot/internal/metrics"
	"github.com/m3rciful/regbot/internal/registration"
	"github.com/m3rciful/regbot/internal/users"
)

// App is the assembled registration bot.
type App struct {
	cfg      *appconfig.Config
	infra    *bootstrap.Result
	store    registration.Store
	handlers *Handlers
}

// New assembles the bot on top of the bootstrapped infrastructure.
func New(cfg *appconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil || infra == nil || infra.DB == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}

	store, locker, err := sessionBackend(cfg, infra)
	if err != nil {
		return nil, err
	}

	repo := users.NewPostgresRepository(infra.DB)
	engine, err := registration.NewEngine(store, locker, repo,
		registration.WithLockWait(cfg.Registration.LockWait),
		registration.WithWorkTimeout(cfg.Registration.WorkTimeout()),
	)
	if err != nil {
		return nil, err
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.SetBuildInfo(buildinfo.Version, buildinfo.Commit)

	return &App{
		cfg:      cfg,
		infra:    infra,
		store:    store,
		handlers: NewHandlers(users.NewService(repo), engine),
	}, nil
}

func sessionBackend(cfg *appconfig.Config, infra *bootstrap.Result) (registration.Store, registration.Locker, error) {
	reg := cfg.Registration
	switch reg.Store {
	case appconfig.StoreRedis:
		if infra.Redis == nil {
			return nil, nil, fmt.Errorf("bot: redis session store selected but redis is not connected")
		}
		logger.SVCRegistration.Info("session store", slog.String("event", "store.select"), slog.String("store", "redis"))
		return registration.NewRedisStore(infra.Redis, reg.SessionTTL),
			registration.NewRedisLocker(infra.Redis, reg.LockTTL), nil
	default:
		logger.SVCRegistration.Info("session store", slog.String("event", "store.select"), slog.String("store", "memory"))
		return registration.NewMemoryStore(registration.WithIdleTTL(reg.SessionTTL)),
			registration.NewMemoryLocker(), nil
	}
}

// Registry lists the bot's commands.
func (a *App) Registry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: a.handlers.Start, Description: "Mulai bot"})
	reg.RegisterCommand("/help", commands.Command{Handler: a.handlers.Help, Description: "Bantuan"})
	reg.RegisterCommand("/register", commands.Command{Handler: a.handlers.Register, Description: "Daftar"})
	reg.RegisterCommand("/sessions", commands.Command{
		Handler:     a.handlers.Sessions,
		Description: "Jumlah pendaftaran yang sedang berjalan",
		AdminOnly:   true,
		Hidden:      true,
	})
	return reg
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := a.Registry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.InputRoutes(a.handlers, reg, router.InputOptions{})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
	}, nil
}

// Workers implements corecmd.WorkerApp: the session janitor and, when
// configured, the ops server.
func (a *App) Workers() []corecmd.Worker {
	workers := []corecmd.Worker{{
		Name: "registration.janitor",
		Run: func(ctx context.Context) error {
			return registration.RunJanitor(ctx, a.store, a.cfg.Registration.SweepInterval)
		},
	}}
	if a.cfg.Ops.Listen != "" {
		srv := ops.NewServer(ops.Options{Listen: a.cfg.Ops.Listen, Checks: a.readinessChecks()})
		workers = append(workers, corecmd.Worker{Name: "ops", Run: srv.Run})
	}
	return workers
}

func (a *App) readinessChecks() map[string]ops.Check {
	checks := map[string]ops.Check{
		"postgres": func(ctx context.Context) error { return a.infra.DB.PingContext(ctx) },
	}
	if a.infra.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.infra.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	a.infra.Close()
}
