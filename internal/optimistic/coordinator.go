// Package optimistic applies a predicted state change before persisting it and undoes it on failure.
package optimistic

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/trailhead-backend/pkg/keylock"
	"github.com/sirupsen/logrus"
)

// ErrInFlight is returned under the Reject policy when the key already has an update in progress.
var ErrInFlight = errors.New("an update for this item is already in progress")

// Command is one optimistic update.
// Predict changes in-memory state, Commit persists it, Rollback restores what Predict replaced.
type Command interface {
	Key() string
	Predict()
	Commit(ctx context.Context) error
	Rollback()
}

// Funcs adapts plain functions to a Command. Nil functions are skipped.
type Funcs struct {
	ID         string
	PredictFn  func()
	CommitFn   func(ctx context.Context) error
	RollbackFn func()
}

func (f Funcs) Key() string { return f.ID }

func (f Funcs) Predict() {
	if f.PredictFn != nil {
		f.PredictFn()
	}
}

func (f Funcs) Commit(ctx context.Context) error {
	if f.CommitFn == nil {
		return nil
	}
	return f.CommitFn(ctx)
}

func (f Funcs) Rollback() {
	if f.RollbackFn != nil {
		f.RollbackFn()
	}
}

// Policy decides what happens to a command whose key is busy.
type Policy int

const (
	// Queue waits for the running command on the same key to settle.
	Queue Policy = iota
	// Reject fails fast with ErrInFlight.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Queue:
		return "queue"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps "queue" or "reject" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "queue":
		return Queue, nil
	case "reject":
		return Reject, nil
	default:
		return Queue, fmt.Errorf("unknown busy policy %q", s)
	}
}

// Coordinator runs commands so that two commands with the same key never interleave.
// Commands with different keys run concurrently.
type Coordinator struct {
	locks  *keylock.Locker
	policy Policy
	log    logrus.FieldLogger
}

func New(policy Policy, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{locks: keylock.New(), policy: policy, log: log}
}

// Apply predicts, commits and, if the commit fails, rolls back. It returns the commit error.
func (c *Coordinator) Apply(ctx context.Context, cmd Command) error {
	key := cmd.Key()

	// 1. Take the key
	unlock, err := c.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	// 2. Predict, then persist
	cmd.Predict()
	if err := cmd.Commit(ctx); err != nil {
		cmd.Rollback()
		c.log.WithField("key", key).WithError(err).Debug("optimistic update rolled back")
		return err
	}
	return nil
}

func (c *Coordinator) acquire(ctx context.Context, key string) (func(), error) {
	if c.policy == Reject {
		unlock, ok := c.locks.TryLock(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInFlight, key)
		}
		return unlock, nil
	}
	return c.locks.Lock(ctx, key)
}

// Busy reports whether a command for key is running or waiting.
func (c *Coordinator) Busy(key string) bool {
	return c.locks.Held(key)
}
