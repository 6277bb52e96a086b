// Package gateway routes list data and votes between the remote store and the device-local store.
//
// Every resource starts on the remote store. When the remote store refuses access for a resource
// (a permission or authorization denial), that resource switches to the local store for the rest
// of the process lifetime and the failed operation is retried locally. Other failures are returned
// unchanged and never switch the resource. Only constructing a new Gateway resets the switches.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/sirupsen/logrus"
)

// Remote is the authoritative backend: list data, the vote ledger and counter adjustment.
type Remote interface {
	store.Store
	vote.Ledger
	AdjustCounter(ctx context.Context, resource, contentID, field string, delta int) (store.Aggregate, error)
}

// DefaultRemoteTimeout applies when no timeout is configured.
const DefaultRemoteTimeout = 5 * time.Second

// Gateway implements store.Store, vote.Ledger and content.Repository.
type Gateway struct {
	remote  Remote
	local   store.Store
	timeout time.Duration
	log     logrus.FieldLogger

	mu        sync.RWMutex
	usesLocal map[string]bool
}

// New creates a gateway with every resource on the remote store.
func New(remote Remote, local store.Store, remoteTimeout time.Duration, log logrus.FieldLogger) *Gateway {
	if remoteTimeout <= 0 {
		remoteTimeout = DefaultRemoteTimeout
	}
	return &Gateway{
		remote:    remote,
		local:     local,
		timeout:   remoteTimeout,
		log:       log,
		usesLocal: make(map[string]bool),
	}
}

// --- Failover state ---

// UsesLocalStore reports whether resource has been switched to the local store.
func (g *Gateway) UsesLocalStore(resource string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usesLocal[resource]
}

// FailedOver lists every resource currently served by the local store, sorted.
func (g *Gateway) FailedOver() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.usesLocal))
	for r := range g.usesLocal {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

func (g *Gateway) failOver(resource, op string, cause error) {
	g.mu.Lock()
	already := g.usesLocal[resource]
	g.usesLocal[resource] = true
	g.mu.Unlock()

	if !already {
		g.log.WithFields(logrus.Fields{
			"resource": resource,
			"op":       op,
		}).WithError(cause).Warn("remote store denied access, resource switched to local store")
	}
}

// --- List data ---

func (g *Gateway) List(ctx context.Context, resource string) ([]store.Record, error) {
	var out []store.Record
	err := g.route(ctx, resource, "list", func(ctx context.Context, s store.Store) error {
		records, err := s.List(ctx, resource)
		out = records
		return err
	})
	return out, err
}

func (g *Gateway) Add(ctx context.Context, resource string, data json.RawMessage) (string, error) {
	var id string
	err := g.route(ctx, resource, "add", func(ctx context.Context, s store.Store) error {
		newID, err := s.Add(ctx, resource, data)
		id = newID
		return err
	})
	return id, err
}

func (g *Gateway) Update(ctx context.Context, resource, id string, patch map[string]any) error {
	return g.route(ctx, resource, "update", func(ctx context.Context, s store.Store) error {
		return s.Update(ctx, resource, id, patch)
	})
}

func (g *Gateway) Remove(ctx context.Context, resource, id string) error {
	return g.route(ctx, resource, "remove", func(ctx context.Context, s store.Store) error {
		return s.Remove(ctx, resource, id)
	})
}

// route runs fn on the store currently serving resource, failing over on a permission denial.
func (g *Gateway) route(ctx context.Context, resource, op string, fn func(context.Context, store.Store) error) error {
	// 1. Already switched: never touch the remote store again
	if g.UsesLocalStore(resource) {
		return fn(ctx, g.local)
	}

	// 2. Remote attempt under the configured timeout
	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	err := fn(rctx, g.remote)
	cancel()
	if err == nil {
		return nil
	}

	// 3. Classify: only a denial switches the resource
	if store.IsPermanentForSession(err) {
		g.failOver(resource, op, err)
		return fn(ctx, g.local)
	}
	return transient(err)
}

// --- Ledger ---

// CastVote runs on the remote store only. A resource on the local store cannot be voted on.
func (g *Gateway) CastVote(ctx context.Context, resource, contentID, userID string, requested vote.Type) (vote.Outcome, error) {
	var out vote.Outcome
	err := g.remoteOnly(ctx, resource, "vote", func(ctx context.Context) error {
		o, err := g.remote.CastVote(ctx, resource, contentID, userID, requested)
		out = o
		return err
	})
	return out, err
}

func (g *Gateway) VoteState(ctx context.Context, resource, contentID, userID string) (vote.State, error) {
	state := vote.StateNone
	err := g.remoteOnly(ctx, resource, "vote_state", func(ctx context.Context) error {
		s, err := g.remote.VoteState(ctx, resource, contentID, userID)
		state = s
		return err
	})
	return state, err
}

// AdjustCounter changes a counter that only the remote ledger tracks.
func (g *Gateway) AdjustCounter(ctx context.Context, resource, contentID, field string, delta int) (store.Aggregate, error) {
	var out store.Aggregate
	err := g.remoteOnly(ctx, resource, "adjust_counter", func(ctx context.Context) error {
		agg, err := g.remote.AdjustCounter(ctx, resource, contentID, field, delta)
		out = agg
		return err
	})
	return out, err
}

func (g *Gateway) remoteOnly(ctx context.Context, resource, op string, fn func(context.Context) error) error {
	if g.UsesLocalStore(resource) {
		return fmt.Errorf("%w: %s is served by the local store", store.ErrVoteUnsupported, resource)
	}

	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	err := fn(rctx)
	cancel()
	if err == nil {
		return nil
	}
	if store.IsPermanentForSession(err) {
		g.failOver(resource, op, err)
		return fmt.Errorf("%w: %w", store.ErrVoteUnsupported, err)
	}
	return transient(err)
}

// transient makes sure a remote timeout reads as store.ErrTransient.
func transient(err error) error {
	if !errors.Is(err, store.ErrTransient) && store.IsNetworkError(err) {
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}
	return err
}
