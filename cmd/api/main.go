package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"

	"dispatchdesk.io/internal/app"
	"dispatchdesk.io/internal/auth"
	"dispatchdesk.io/internal/config"
	"dispatchdesk.io/internal/httpapi"
	"dispatchdesk.io/internal/obs"
	"dispatchdesk.io/internal/schedule"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath = flag.StringP("config", "c", os.Getenv("DISPATCH_CONFIG"), "path to a YAML config file")
		usage      = flag.Bool("env-help", false, "print supported environment variables and exit")
	)
	flag.Parse()

	if *usage {
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := obs.NewLogger(obs.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("dispatchdesk-api exited")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	verifier, err := auth.NewVerifier(cfg.Auth.Secret, auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return err
	}

	api := httpapi.New(httpapi.Deps{
		Engine:         svc.Engine,
		Resolver:       svc.Resolver,
		Status:         svc.Status,
		Index:          svc.Index,
		Admin:          svc.Admin,
		Verifier:       verifier,
		Events:         svc.Events,
		Ready:          svc.Ready,
		Log:            log,
		Version:        version,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	httpapi.NewGRPCServer(svc.Ready).Register(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	var sched *schedule.Scheduler
	if cfg.Reconciler.Enabled {
		sched, err = schedule.New(cfg.Reconciler.Schedule, svc.Reconciler,
			schedule.WithLogger(log.WithField("component", "reconciler")),
			schedule.WithResultHook(obs.ObserveSweep),
		)
		if err != nil {
			return err
		}
		if err := sched.StartWithContext(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": version}).Info("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.WithField("addr", cfg.GRPC.Addr).Info("grpc server starting")
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.WithError(err).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if sched != nil {
		if stopErr := sched.StopWithContext(shutdownCtx); stopErr != nil {
			log.WithError(stopErr).Warn("reconciler did not stop cleanly")
		}
	}
	if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil {
		log.WithError(shutErr).Warn("http shutdown")
	}
	grpcSrv.GracefulStop()
	log.Info("stopped")
	return err
}
