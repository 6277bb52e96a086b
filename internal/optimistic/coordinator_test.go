package optimistic

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// counter is a tiny view model guarded by a mutex.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func incrementCommand(view *counter, commit func(context.Context) error) Command {
	return Funcs{
		ID:         "item-1/user-1",
		PredictFn:  func() { view.add(1) },
		CommitFn:   commit,
		RollbackFn: func() { view.add(-1) },
	}
}

func TestApplyPredictsBeforeCommit(t *testing.T) {
	view := &counter{}
	c := New(Queue, quietLogger())

	var seen int
	err := c.Apply(context.Background(), incrementCommand(view, func(context.Context) error {
		seen = view.get()
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, view.get())
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	view := &counter{}
	c := New(Queue, quietLogger())
	boom := errors.New("remote unavailable")

	err := c.Apply(context.Background(), incrementCommand(view, func(context.Context) error { return boom }))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, view.get())
	assert.False(t, c.Busy("item-1/user-1"))
}

func TestQueueSerializesSameKey(t *testing.T) {
	c := New(Queue, quietLogger())
	var (
		mu    sync.Mutex
		trace []string
	)
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}

	started := make(chan struct{})
	release := make(chan struct{})
	first := Funcs{
		ID:        "k",
		PredictFn: func() { record("predict-1") },
		CommitFn: func(context.Context) error {
			close(started)
			<-release
			record("commit-1")
			return nil
		},
	}
	second := Funcs{
		ID:        "k",
		PredictFn: func() { record("predict-2") },
		CommitFn:  func(context.Context) error { record("commit-2"); return nil },
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); assert.NoError(t, c.Apply(context.Background(), first)) }()
	<-started
	go func() { defer wg.Done(); assert.NoError(t, c.Apply(context.Background(), second)) }()

	// second must not predict while first is still committing
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"predict-1"}, trace)
	mu.Unlock()

	close(release)
	wg.Wait()
	assert.Equal(t, []string{"predict-1", "commit-1", "predict-2", "commit-2"}, trace)
}

func TestRejectPolicy(t *testing.T) {
	c := New(Reject, quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error)
	go func() {
		done <- c.Apply(context.Background(), Funcs{ID: "k", CommitFn: func(context.Context) error {
			close(started)
			<-release
			return nil
		}})
	}()
	<-started

	predicted := false
	err := c.Apply(context.Background(), Funcs{ID: "k", PredictFn: func() { predicted = true }})
	assert.ErrorIs(t, err, ErrInFlight)
	assert.False(t, predicted)

	// other keys are unaffected
	assert.NoError(t, c.Apply(context.Background(), Funcs{ID: "other"}))

	close(release)
	assert.NoError(t, <-done)
	assert.NoError(t, c.Apply(context.Background(), Funcs{ID: "k"}))
}

func TestQueuedCommandHonorsContext(t *testing.T) {
	c := New(Queue, quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = c.Apply(context.Background(), Funcs{ID: "k", CommitFn: func(context.Context) error {
			close(started)
			<-release
			return nil
		}})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.Apply(ctx, Funcs{ID: "k"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRapidDoubleTapEndsConsistent(t *testing.T) {
	view := &counter{}
	var persisted counter
	c := New(Queue, quietLogger())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Apply(context.Background(), incrementCommand(view, func(context.Context) error {
				persisted.add(1)
				return nil
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, persisted.get(), view.get())
	assert.Equal(t, 10, view.get())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, Reject, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Queue, p)
	_, err = ParsePolicy("drop")
	assert.Error(t, err)
}
