package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/trailhead-backend/pkg/lifecycle"
	"github.com/sirupsen/logrus"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 30 * time.Second
	forcefulTimeout = time.Second
)

// Coordinator runs the shutdown sequence: drain HTTP, stop background services
// gracefully, then stop the forceful services, then release resources.
// Forceful services only need a cancel, like force-closing connections a drain left open.
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	log             logrus.FieldLogger

	// Closers run last, in order. Errors are logged.
	Closers []func() error
}

func NewCoordinator(graceful, forceful *lifecycle.Manager, log logrus.FieldLogger, closers ...func() error) *Coordinator {
	return &Coordinator{
		GracefulManager: graceful,
		ForcefulManager: forceful,
		log:             log,
		Closers:         closers,
	}
}

// ListenForSignalsAndShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	c.log.WithField("signal", sig.String()).Info("shutdown requested")
	c.Shutdown(server)
}

// Shutdown runs the sequence without waiting for a signal.
func (c *Coordinator) Shutdown(server *http.Server) {
	// 1. Let in-flight requests finish
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		if err := server.Shutdown(ctx); err != nil {
			c.log.WithError(err).Error("http server shutdown")
		} else {
			c.log.Info("http server stopped")
		}
		cancel()
	}

	// 2. Graceful phase
	c.GracefulManager.Shutdown()
	if remaining := c.GracefulManager.WaitWithTimeout(gracefulTimeout); len(remaining) > 0 {
		c.log.WithField("services", remaining).Warn("graceful phase timed out")
	}

	// 3. Forceful phase
	c.ForcefulManager.Shutdown()
	if remaining := c.ForcefulManager.WaitWithTimeout(forcefulTimeout); len(remaining) > 0 {
		c.log.WithField("services", remaining).Warn("services still running after forceful phase")
	}

	// 4. Release resources
	for _, closeFn := range c.Closers {
		if err := closeFn(); err != nil {
			c.log.WithError(err).Warn("close resource")
		}
	}
	c.log.Info("shutdown complete")
}
