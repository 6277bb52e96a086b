package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager hands out Handles to background services and waits for them on shutdown.
type Manager struct {
	name string
	log  logrus.FieldLogger

	wg       sync.WaitGroup
	mu       sync.Mutex
	services map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. name only appears in log lines.
func NewManager(name string, log logrus.FieldLogger) *Manager {
	m := &Manager{
		name:     name,
		log:      log.WithField("lifecycle", name),
		services: make(map[string]bool),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// NewServiceHandle registers a service. Each name may be registered once at a time.
func (m *Manager) NewServiceHandle(name string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.services[name] {
		return nil, fmt.Errorf("lifecycle %s: service %q already registered", m.name, name)
	}
	m.services[name] = true
	m.wg.Add(1)
	m.log.WithField("service", name).Debug("service registered")

	var once sync.Once
	return &Handle{
		ctx: m.ctx,
		Close: func() {
			once.Do(func() {
				m.mu.Lock()
				defer m.mu.Unlock()
				delete(m.services, name)
				m.wg.Done()
			})
		},
	}, nil
}

// Shutdown cancels every handle's context.
func (m *Manager) Shutdown() {
	m.log.Info("broadcasting shutdown")
	m.cancel()
}

// WaitWithTimeout waits for every registered service to close.
// It returns the names of services still running when the timeout fires, sorted.
func (m *Manager) WaitWithTimeout(timeout time.Duration) []string {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		m.mu.Lock()
		defer m.mu.Unlock()
		remaining := make([]string, 0, len(m.services))
		for name := range m.services {
			remaining = append(remaining, name)
		}
		slices.Sort(remaining)
		return remaining
	}
}
