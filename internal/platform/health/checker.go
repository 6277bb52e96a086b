// Package health tracks whether the remote backend answers. It only observes:
// a failing ping never switches a resource to the local store.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/SlpAus/trailhead-backend/pkg/lifecycle"
	"github.com/sirupsen/logrus"
)

// State is the last observed condition of the remote backend.
type State int

const (
	StateUnknown State = iota
	StateHealthy
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pinger is a backend that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is a snapshot of the checker.
type Status struct {
	State     State     `json:"state"`
	LastError string    `json:"lastError,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Checker pings the remote backend on an interval.
type Checker struct {
	pinger      Pinger
	interval    time.Duration
	pingTimeout time.Duration
	log         logrus.FieldLogger
	now         func() time.Time

	mu     sync.RWMutex
	status Status
}

func NewChecker(pinger Pinger, interval, pingTimeout time.Duration, log logrus.FieldLogger) *Checker {
	return &Checker{
		pinger:      pinger,
		interval:    interval,
		pingTimeout: pingTimeout,
		log:         log.WithField("component", "health"),
		now:         time.Now,
	}
}

// Status returns the latest result.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Check pings once and records the result.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	err := c.pinger.Ping(ctx)
	cancel()

	next := Status{State: StateHealthy, CheckedAt: c.now()}
	if err != nil {
		next.State = StateDegraded
		next.LastError = err.Error()
	}

	c.mu.Lock()
	prev := c.status.State
	c.status = next
	c.mu.Unlock()

	if prev != next.State {
		entry := c.log.WithFields(logrus.Fields{"from": prev, "to": next.State})
		if err != nil {
			entry.WithError(err).Warn("remote backend state changed")
		} else {
			entry.Info("remote backend state changed")
		}
	}
	return next
}

// Run checks immediately, then on every interval until h shuts down.
func (c *Checker) Run(h *lifecycle.Handle) {
	defer h.Close()
	for {
		c.Check(h.Ctx())
		if err := h.Sleep(c.interval); err != nil {
			return
		}
	}
}
