package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/trailhead-backend/pkg/lifecycle"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakePinger) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakePinger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCheckTransitions(t *testing.T) {
	p := &fakePinger{}
	c := NewChecker(p, time.Minute, time.Second, quietLogger())
	assert.Equal(t, StateUnknown, c.Status().State)

	assert.Equal(t, StateHealthy, c.Check(context.Background()).State)

	p.set(errors.New("dial tcp: connection refused"))
	st := c.Check(context.Background())
	assert.Equal(t, StateDegraded, st.State)
	assert.Equal(t, "dial tcp: connection refused", st.LastError)
	assert.Equal(t, st, c.Status())

	p.set(nil)
	st = c.Check(context.Background())
	assert.Equal(t, StateHealthy, st.State)
	assert.Empty(t, st.LastError)
}

func TestStatusJSON(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Status{State: StateDegraded, LastError: "NOAUTH", CheckedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"degraded","lastError":"NOAUTH","checkedAt":"2026-05-01T12:00:00Z"}`, string(raw))
}

func TestRunStopsOnShutdown(t *testing.T) {
	p := &fakePinger{}
	c := NewChecker(p, time.Millisecond, time.Second, quietLogger())
	m := lifecycle.NewManager("test", quietLogger())
	h, err := m.NewServiceHandle("health")
	require.NoError(t, err)

	go c.Run(h)
	require.Eventually(t, func() bool { return p.count() >= 3 }, time.Second, time.Millisecond)

	m.Shutdown()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}
