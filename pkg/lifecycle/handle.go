package lifecycle

import (
	"context"
	"time"
)

// Handle is given to one background service by a Manager.
// The service must call Close before its goroutine exits.
type Handle struct {
	ctx   context.Context
	Close func()
}

// Ctx is cancelled when the manager shuts down.
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep waits for d, returning early with the context error if the manager shuts down.
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
