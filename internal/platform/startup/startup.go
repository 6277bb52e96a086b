// Package startup wires configuration into a running set of services.
package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/gateway"
	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/optimistic"
	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/SlpAus/trailhead-backend/internal/platform/database"
	"github.com/SlpAus/trailhead-backend/internal/platform/health"
	"github.com/SlpAus/trailhead-backend/internal/store/localstore"
	"github.com/SlpAus/trailhead-backend/internal/store/redisstore"
	"github.com/SlpAus/trailhead-backend/internal/store/sqlstore"
	"github.com/SlpAus/trailhead-backend/internal/trip"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/sirupsen/logrus"
)

// RemoteBackend is an authoritative store that can be health-checked.
type RemoteBackend interface {
	gateway.Remote
	health.Pinger
}

// App holds every long-lived service. Close releases its connections.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Gateway *gateway.Gateway
	Content *content.Service
	Votes   *vote.Service
	Trips   *trip.Service
	Health  *health.Checker

	Verifier   *identity.Verifier
	BusyPolicy optimistic.Policy

	closers []func() error
}

// Closers returns the release functions in the order they should run.
func (a *App) Closers() []func() error {
	return a.closers
}

// Close runs every closer and returns the first error.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build opens the remote and local stores and assembles the services on top of the gateway.
// An unreachable remote backend does not stop startup; its errors surface per request.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log}

	policy, err := optimistic.ParsePolicy(cfg.Client.BusyPolicy)
	if err != nil {
		return nil, err
	}
	app.BusyPolicy = policy

	// 1. Remote store
	remote, err := openRemote(ctx, cfg.Remote, log, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 2. Local store
	localDB, err := database.OpenLocal(cfg.Local, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, func() error { return database.Close(localDB) })
	kv := localstore.NewKV(localDB)
	if err := kv.Migrate(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	local := localstore.NewCollection(kv, cfg.Local.KeyPrefix)

	// 3. Services
	app.Gateway = gateway.New(remote, local, cfg.Remote.Timeout, log)
	app.Votes = vote.NewService(app.Gateway, vote.RetryPolicy{
		MaxAttempts:     cfg.Vote.MaxAttempts,
		InitialInterval: cfg.Vote.InitialBackoff,
		MaxInterval:     cfg.Vote.MaxBackoff,
	}, log)
	app.Content = content.NewService(app.Gateway, log)
	app.Trips = trip.NewService(app.Gateway, log)
	app.Health = health.NewChecker(remote, cfg.Health.Interval, cfg.Health.PingTimeout, log)
	app.Verifier = identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	log.WithFields(logrus.Fields{
		"remote": cfg.Remote.Driver,
		"local":  cfg.Local.Path,
	}).Info("application assembled")
	return app, nil
}

func openRemote(ctx context.Context, cfg config.RemoteConfig, log *logrus.Logger, app *App) (RemoteBackend, error) {
	if cfg.Driver == config.DriverRedis {
		rdb := database.OpenRedis(cfg.Redis)
		app.closers = append(app.closers, rdb.Close)
		return redisstore.New(rdb), nil
	}

	db, err := database.OpenRemoteSQL(cfg, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error { return database.Close(db) })
	s := sqlstore.New(db)

	mctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := s.Migrate(mctx); err != nil {
		// the schema may be managed elsewhere or the server may still be starting
		log.WithError(err).Warn("remote schema migration failed")
	}
	return s, nil
}
