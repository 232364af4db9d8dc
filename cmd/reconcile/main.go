// Command reconcile runs one expiry sweep and exits. It is meant for cron
// jobs or for draining a backlog after the API's scheduler was disabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"dispatchdesk.io/internal/app"
	"dispatchdesk.io/internal/config"
	"dispatchdesk.io/internal/obs"
	"dispatchdesk.io/internal/schedule"
)

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("DISPATCH_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := obs.NewLogger(obs.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("reconcile failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	sched, err := schedule.New(cfg.Reconciler.Schedule, svc.Reconciler, schedule.WithLogger(log))
	if err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}
	res, err := sched.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	log.WithFields(logrus.Fields{
		"reactivated": res.Reactivated,
		"released":    res.Released,
		"skipped":     res.Skipped,
	}).Info("sweep complete")
	return nil
}
