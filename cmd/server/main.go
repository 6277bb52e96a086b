package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/SlpAus/trailhead-backend/api"
	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/SlpAus/trailhead-backend/internal/platform/logging"
	"github.com/SlpAus/trailhead-backend/internal/platform/shutdown"
	"github.com/SlpAus/trailhead-backend/internal/platform/startup"
	"github.com/SlpAus/trailhead-backend/pkg/lifecycle"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}
	log := logging.New(cfg.Log)

	// 1. Assemble stores and services
	app, err := startup.Build(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("application startup failed")
	}

	// 2. Background services
	graceful := lifecycle.NewManager("graceful", log)
	forceful := lifecycle.NewManager("forceful", log)
	healthHandle, err := graceful.NewServiceHandle("health")
	if err != nil {
		log.WithError(err).Fatal("register health checker")
	}
	go app.Health.Run(healthHandle)

	// 3. HTTP server
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewRouter(app),
	}
	go func() {
		log.WithField("address", cfg.Server.Address).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	// connections still open after the drain are closed in the forceful phase
	httpHandle, err := forceful.NewServiceHandle("http")
	if err != nil {
		log.WithError(err).Fatal("register http server")
	}
	go func() {
		defer httpHandle.Close()
		<-httpHandle.Done()
		if err := server.Close(); err != nil {
			log.WithError(err).Warn("force close http server")
		}
	}()

	// 4. Block until a signal, then drain
	shutdown.NewCoordinator(graceful, forceful, log, app.Closers()...).ListenForSignalsAndShutdown(server)
}
