// Package viewmodel holds client-side view state built on the optimistic coordinator.
//
// The two views follow different failure policies. A failed vote silently restores the
// previous counters and state. A failed list mutation is restored too, but stays visible
// as a Failure the user can retry or dismiss.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/optimistic"
	"github.com/SlpAus/trailhead-backend/internal/ranking"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// stateFetchLimit bounds concurrent vote state lookups during Load.
const stateFetchLimit = 8

// FeedSource supplies ranked feed items. *content.Service satisfies it.
type FeedSource interface {
	Feed(ctx context.Context, t content.Type, mode ranking.Mode, includeHidden bool) ([]content.Item, error)
}

// Voter casts votes and reads the viewer's own vote. *vote.Service satisfies it.
type Voter interface {
	CastVote(ctx context.Context, resource, contentID, userID string, requested vote.Type) (vote.Outcome, error)
	MyVote(ctx context.Context, resource, contentID, userID string) (vote.State, error)
}

// FeedEntry is one row of the feed as the viewer sees it.
type FeedEntry struct {
	Item   content.Item `json:"item"`
	MyVote vote.State   `json:"myVote"`
}

// FeedView is one viewer's feed of a single content type.
type FeedView struct {
	source FeedSource
	voter  Voter
	coord  *optimistic.Coordinator
	log    logrus.FieldLogger

	contentType content.Type
	mode        ranking.Mode
	userID      string

	mu     sync.RWMutex
	items  []content.Item
	states map[string]vote.State
}

// NewFeedView creates an empty view. userID may be empty for an anonymous viewer, who can read but not vote.
func NewFeedView(source FeedSource, voter Voter, coord *optimistic.Coordinator, t content.Type, mode ranking.Mode, userID string, log logrus.FieldLogger) *FeedView {
	return &FeedView{
		source:      source,
		voter:       voter,
		coord:       coord,
		log:         log.WithFields(logrus.Fields{"view": "feed", "resource": t}),
		contentType: t,
		mode:        mode,
		userID:      userID,
		states:      make(map[string]vote.State),
	}
}

// Load replaces the items and the viewer's vote states with fresh data.
// Items whose resource cannot be voted on read as StateNone.
func (v *FeedView) Load(ctx context.Context) error {
	items, err := v.source.Feed(ctx, v.contentType, v.mode, false)
	if err != nil {
		return err
	}

	states := make(map[string]vote.State, len(items))
	if v.userID != "" {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(stateFetchLimit)
		for _, item := range items {
			g.Go(func() error {
				state, err := v.voter.MyVote(gctx, string(v.contentType), item.ID, v.userID)
				if errors.Is(err, store.ErrVoteUnsupported) {
					state, err = vote.StateNone, nil
				}
				if err != nil {
					return fmt.Errorf("vote state of %s: %w", item.ID, err)
				}
				mu.Lock()
				states[item.ID] = state
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	v.mu.Lock()
	v.items = items
	v.states = states
	v.mu.Unlock()
	return nil
}

// Entries returns a snapshot of the feed in display order.
func (v *FeedView) Entries() []FeedEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]FeedEntry, len(v.items))
	for i, item := range v.items {
		out[i] = FeedEntry{Item: item, MyVote: v.stateLocked(item.ID)}
	}
	return out
}

// Entry returns one row of the feed.
func (v *FeedView) Entry(id string) (FeedEntry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i := v.indexLocked(id)
	if i < 0 {
		return FeedEntry{}, false
	}
	return FeedEntry{Item: v.items[i], MyVote: v.stateLocked(id)}, true
}

// Vote shows the viewer's vote at once, then persists it.
// On failure the row silently returns to what it was before; the error is logged and returned
// but the view keeps no error state.
func (v *FeedView) Vote(ctx context.Context, id string, requested vote.Type) error {
	if v.userID == "" {
		return store.ErrUnauthenticated
	}
	if _, ok := v.Entry(id); !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, v.contentType, id)
	}

	var before FeedEntry
	cmd := optimistic.Funcs{
		ID: id + "/" + v.userID,
		PredictFn: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			i := v.indexLocked(id)
			if i < 0 {
				return
			}
			before = FeedEntry{Item: v.items[i], MyVote: v.stateLocked(id)}
			next, delta := vote.Transition(before.MyVote, requested)
			v.items[i] = v.items[i].WithAggregate(delta.Apply(v.items[i].Aggregate()))
			v.states[id] = next
		},
		CommitFn: func(ctx context.Context) error {
			out, err := v.voter.CastVote(ctx, string(v.contentType), id, v.userID, requested)
			if err != nil {
				return err
			}
			// the ledger's aggregate wins over the prediction
			v.setRow(id, out.Aggregate, out.State)
			return nil
		},
		RollbackFn: func() {
			v.setRow(id, before.Item.Aggregate(), before.MyVote)
		},
	}

	if err := v.coord.Apply(ctx, cmd); err != nil {
		v.log.WithFields(logrus.Fields{"content_id": id, "vote": requested}).WithError(err).Warn("vote reverted")
		return err
	}
	return nil
}

func (v *FeedView) setRow(id string, agg store.Aggregate, state vote.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.indexLocked(id); i >= 0 {
		v.items[i] = v.items[i].WithAggregate(agg)
	}
	v.states[id] = state
}

func (v *FeedView) indexLocked(id string) int {
	return slices.IndexFunc(v.items, func(item content.Item) bool { return item.ID == id })
}

func (v *FeedView) stateLocked(id string) vote.State {
	if s, ok := v.states[id]; ok {
		return s
	}
	return vote.StateNone
}
