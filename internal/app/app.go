// Package app assembles the access services from configuration. Both the
// API server and the one-shot reconcile command start from here.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/audit"
	"dispatchdesk.io/internal/config"
	"dispatchdesk.io/internal/httpapi"
	"dispatchdesk.io/internal/migrate"
	"dispatchdesk.io/internal/obs"
	"dispatchdesk.io/internal/store/pg"
	"dispatchdesk.io/internal/stream"
)

// Services is the wired application.
type Services struct {
	Resolver   *access.Resolver
	Status     *access.StatusService
	Index      *access.Index
	Engine     *access.Engine
	Admin      *access.Admin
	Reconciler *access.Reconciler
	Events     *stream.Hub
	Ready      httpapi.ReadyProbe

	close func() error
}

// Close releases the storage backend.
func (s *Services) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Build opens the configured store and wires the services over it. With
// the postgres driver and MigrateOnStart set, pending migrations run first.
func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Services, error) {
	var (
		store access.Store
		svc   = &Services{}
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; state is lost on restart")
		store = access.NewMemory()
	case config.DriverPostgres:
		pgs, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pgs.Ping(ctx); err != nil {
			_ = pgs.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.Database.MigrateOnStart {
			mgr, err := migrate.NewManager(pgs.DB(), migrate.WithLogger(log))
			if err != nil {
				_ = pgs.Close()
				return nil, err
			}
			applied, err := mgr.Up(ctx)
			if err != nil {
				_ = pgs.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.WithField("applied", len(applied)).Info("migrations complete")
		}
		store = pgs
		svc.Ready = httpapi.ReadyProbe{DB: pgs}
		svc.close = pgs.Close
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	svc.Events = stream.New(0)
	opts := []access.Option{
		access.WithLogger(log),
		access.WithObserver(access.Observers{audit.New(log), obs.MetricsObserver{}, svc.Events}),
		access.WithLockout(cfg.Lockout.Threshold, cfg.Lockout.Duration),
		access.WithSweepBatch(cfg.Reconciler.Batch),
	}
	svc.Resolver = access.NewResolver(store.Accounts())
	svc.Status = access.NewStatusService(store.Accounts(), opts...)
	svc.Index = access.NewIndex(store.Grants(), opts...)
	svc.Engine = access.NewEngine(svc.Resolver, svc.Status, svc.Index, opts...)
	svc.Admin = access.NewAdmin(svc.Status, svc.Index)
	svc.Reconciler = access.NewReconciler(store.Accounts(), opts...)
	return svc, nil
}
