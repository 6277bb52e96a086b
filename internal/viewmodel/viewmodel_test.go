package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/optimistic"
	"github.com/SlpAus/trailhead-backend/internal/ranking"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/trip"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var errOffline = fmt.Errorf("%w: connection refused", store.ErrTransient)

// --- Feed fakes ---

type fakeFeed struct {
	items []content.Item
}

func (f *fakeFeed) Feed(context.Context, content.Type, ranking.Mode, bool) ([]content.Item, error) {
	return append([]content.Item(nil), f.items...), nil
}

// fakeVoter runs the real transition table over in-memory aggregates.
type fakeVoter struct {
	mu     sync.Mutex
	aggs   map[string]store.Aggregate
	states map[string]vote.State
	err    error
	// stateErr is returned by MyVote for every item.
	stateErr error
	// gate, when set, blocks CastVote until it is closed.
	gate chan struct{}
	// others simulates votes by other users landing before ours.
	others int
}

func newFakeVoter(items []content.Item) *fakeVoter {
	v := &fakeVoter{aggs: map[string]store.Aggregate{}, states: map[string]vote.State{}}
	for _, item := range items {
		v.aggs[item.ID] = item.Aggregate()
	}
	return v
}

func (f *fakeVoter) CastVote(ctx context.Context, _, contentID, userID string, requested vote.Type) (vote.Outcome, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return vote.Outcome{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return vote.Outcome{}, f.err
	}
	agg := f.aggs[contentID]
	agg.UpvoteCount += f.others
	agg.Score += f.others
	plan, err := vote.PlanVote(f.states[contentID+"/"+userID], agg, requested)
	if err != nil {
		return vote.Outcome{}, err
	}
	f.aggs[contentID] = plan.Aggregate
	f.states[contentID+"/"+userID] = plan.Next
	return vote.Outcome{Aggregate: plan.Aggregate, State: plan.Next}, nil
}

func (f *fakeVoter) MyVote(_ context.Context, _, contentID, userID string) (vote.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return vote.StateNone, f.stateErr
	}
	if s, ok := f.states[contentID+"/"+userID]; ok {
		return s, nil
	}
	return vote.StateNone, nil
}

func feedItems() []content.Item {
	return []content.Item{
		{ID: "t1", Type: content.TypeTip, Title: "Filter creek water", UpvoteCount: 3, DownvoteCount: 1, Score: 2},
		{ID: "t2", Type: content.TypeTip, Title: "Pack a spare headlamp"},
	}
}

func newFeedView(t *testing.T, userID string) (*FeedView, *fakeVoter) {
	t.Helper()
	items := feedItems()
	voter := newFakeVoter(items)
	view := NewFeedView(&fakeFeed{items: items}, voter, optimistic.New(optimistic.Queue, quietLogger()), content.TypeTip, ranking.ModeHot, userID, quietLogger())
	require.NoError(t, view.Load(context.Background()))
	return view, voter
}

// --- Feed ---

func TestFeedLoadReadsOwnStates(t *testing.T) {
	items := feedItems()
	voter := newFakeVoter(items)
	voter.states["t1/A"] = vote.StateUp
	view := NewFeedView(&fakeFeed{items: items}, voter, optimistic.New(optimistic.Queue, quietLogger()), content.TypeTip, ranking.ModeHot, "A", quietLogger())
	require.NoError(t, view.Load(context.Background()))

	entries := view.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, vote.StateUp, entries[0].MyVote)
	assert.Equal(t, vote.StateNone, entries[1].MyVote)

	// a resource that cannot be voted on reads as no vote
	voter.stateErr = store.ErrVoteUnsupported
	require.NoError(t, view.Load(context.Background()))
	assert.Equal(t, vote.StateNone, view.Entries()[0].MyVote)

	voter.stateErr = errOffline
	assert.ErrorIs(t, view.Load(context.Background()), store.ErrTransient)
}

func TestFeedVoteReconcilesWithLedger(t *testing.T) {
	view, voter := newFeedView(t, "A")
	voter.others = 2

	require.NoError(t, view.Vote(context.Background(), "t1", vote.Up))
	e, ok := view.Entry("t1")
	require.True(t, ok)
	assert.Equal(t, vote.StateUp, e.MyVote)
	// the prediction said 4 up; the ledger saw two more votes land first
	assert.Equal(t, store.Aggregate{UpvoteCount: 6, DownvoteCount: 1, Score: 5}, e.Item.Aggregate())
}

func TestFeedVoteShowsPredictionBeforeCommit(t *testing.T) {
	view, voter := newFeedView(t, "A")
	voter.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- view.Vote(context.Background(), "t2", vote.Down) }()

	require.Eventually(t, func() bool {
		e, _ := view.Entry("t2")
		return e.MyVote == vote.StateDown
	}, time.Second, time.Millisecond)
	e, _ := view.Entry("t2")
	assert.Equal(t, store.Aggregate{DownvoteCount: 1, Score: -1}, e.Item.Aggregate())

	close(voter.gate)
	require.NoError(t, <-done)
}

func TestFeedVoteFailureRevertsSilently(t *testing.T) {
	view, voter := newFeedView(t, "A")
	before, _ := view.Entry("t1")
	voter.err = errOffline

	err := view.Vote(context.Background(), "t1", vote.Down)
	assert.ErrorIs(t, err, store.ErrTransient)

	after, _ := view.Entry("t1")
	assert.Equal(t, before, after)
}

func TestFeedVoteRequiresViewer(t *testing.T) {
	view, _ := newFeedView(t, "")
	assert.ErrorIs(t, view.Vote(context.Background(), "t1", vote.Up), store.ErrUnauthenticated)

	view, _ = newFeedView(t, "A")
	assert.ErrorIs(t, view.Vote(context.Background(), "missing", vote.Up), store.ErrNotFound)
}

func TestFeedRapidDoubleTapTogglesOff(t *testing.T) {
	view, _ := newFeedView(t, "A")
	before, _ := view.Entry("t1")

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, view.Vote(context.Background(), "t1", vote.Up))
		}()
	}
	wg.Wait()

	after, _ := view.Entry("t1")
	assert.Equal(t, vote.StateNone, after.MyVote)
	assert.Equal(t, before.Item.Aggregate(), after.Item.Aggregate())
}

// --- Trip fakes ---

type fakeTrip struct {
	mu      sync.Mutex
	packing []trip.PackingItem
	meals   []trip.Meal
	status  trip.StoreStatus
	fail    map[Op]error
	nextID  int
	gate    chan struct{}
	// stored runs after AddPacking persisted an item and before it returns.
	stored func()
}

func newFakeTrip() *fakeTrip {
	return &fakeTrip{
		packing: []trip.PackingItem{{ID: "p1", Name: "tent", Quantity: 1}, {ID: "p2", Name: "stove", Quantity: 1}},
		meals:   []trip.Meal{{ID: "m1", Day: 1, Slot: trip.SlotDinner, Name: "curry"}},
		fail:    map[Op]error{},
	}
}

func (f *fakeTrip) setFail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeTrip) ListPacking(context.Context, string) ([]trip.PackingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trip.PackingItem(nil), f.packing...), nil
}

func (f *fakeTrip) ListMeals(context.Context, string) ([]trip.Meal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trip.Meal(nil), f.meals...), nil
}

func (f *fakeTrip) Status(string) (trip.StoreStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeTrip) AddPacking(ctx context.Context, _ string, d trip.PackingDraft) (trip.PackingItem, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	if err := f.fail[OpAdd]; err != nil {
		f.mu.Unlock()
		return trip.PackingItem{}, err
	}
	f.nextID++
	item := trip.PackingItem{ID: fmt.Sprintf("stored-%d", f.nextID), Name: d.Name, Quantity: max(d.Quantity, 1)}
	f.packing = append(f.packing, item)
	stored := f.stored
	f.mu.Unlock()

	if stored != nil {
		stored()
	}
	return item, nil
}

func (f *fakeTrip) SetPacked(_ context.Context, _, id string, packed bool) (trip.PackingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[OpToggle]; err != nil {
		return trip.PackingItem{}, err
	}
	for i := range f.packing {
		if f.packing[i].ID == id {
			f.packing[i].Packed = packed
			return f.packing[i], nil
		}
	}
	return trip.PackingItem{}, store.ErrNotFound
}

func (f *fakeTrip) RemovePacking(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[OpRemove]; err != nil {
		return err
	}
	for i := range f.packing {
		if f.packing[i].ID == id {
			f.packing = append(f.packing[:i], f.packing[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func newTripView(t *testing.T) (*TripListView, *fakeTrip) {
	t.Helper()
	source := newFakeTrip()
	view := NewTripListView(source, optimistic.New(optimistic.Queue, quietLogger()), "trip-1", quietLogger())
	require.NoError(t, view.Load(context.Background()))
	return view, source
}

func ids(items []trip.PackingItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

// --- Trip list ---

func TestTripLoad(t *testing.T) {
	source := newFakeTrip()
	source.status = trip.StoreStatus{MealsLocal: true}
	view := NewTripListView(source, optimistic.New(optimistic.Queue, quietLogger()), "trip-1", quietLogger())
	require.NoError(t, view.Load(context.Background()))

	assert.Equal(t, []string{"p1", "p2"}, ids(view.Packing()))
	assert.Len(t, view.Meals(), 1)
	assert.True(t, view.Status().MealsLocal)
}

func TestTripAddReplacesPendingItem(t *testing.T) {
	view, source := newTripView(t)
	source.gate = make(chan struct{})

	done := make(chan error, 1)
	var pendingID string
	var mu sync.Mutex
	go func() {
		id, err := view.Add(context.Background(), trip.PackingDraft{Name: "rope"})
		mu.Lock()
		pendingID = id
		mu.Unlock()
		done <- err
	}()

	require.Eventually(t, func() bool { return len(view.Packing()) == 3 }, time.Second, time.Millisecond)
	assert.True(t, isPending(view.Packing()[2].ID))
	assert.Equal(t, 1, view.Packing()[2].Quantity)

	close(source.gate)
	require.NoError(t, <-done)
	mu.Lock()
	assert.True(t, isPending(pendingID))
	mu.Unlock()
	assert.Equal(t, []string{"p1", "p2", "stored-1"}, ids(view.Packing()))
	assert.Empty(t, view.Failures())
}

func TestTripReloadDuringAddKeepsOneCopy(t *testing.T) {
	view, source := newTripView(t)
	source.stored = func() {
		// the reload sees the stored item while the pending row is still shown
		require.NoError(t, view.Load(context.Background()))
	}

	_, err := view.Add(context.Background(), trip.PackingDraft{Name: "rope"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "stored-1"}, ids(view.Packing()))
}

func TestTripAddFailureIsVisibleAndRetryable(t *testing.T) {
	view, source := newTripView(t)
	source.setFail(OpAdd, errOffline)

	pendingID, err := view.Add(context.Background(), trip.PackingDraft{Name: "rope"})
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.Equal(t, []string{"p1", "p2"}, ids(view.Packing()))

	failures := view.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, pendingID, failures[0].ID)
	assert.Equal(t, OpAdd, failures[0].Op)
	assert.ErrorIs(t, failures[0].Err, store.ErrTransient)

	// still failing: the failure is replaced, not duplicated
	assert.Error(t, view.Retry(context.Background(), pendingID))
	require.Len(t, view.Failures(), 1)

	source.setFail(OpAdd, nil)
	require.NoError(t, view.Retry(context.Background(), pendingID))
	assert.Empty(t, view.Failures())
	assert.Equal(t, []string{"p1", "p2", "stored-1"}, ids(view.Packing()))
}

func TestTripRemoveFailureRestoresInPlace(t *testing.T) {
	view, source := newTripView(t)
	source.setFail(OpRemove, errOffline)

	assert.Error(t, view.Remove(context.Background(), "p1"))
	assert.Equal(t, []string{"p1", "p2"}, ids(view.Packing()))
	require.Len(t, view.Failures(), 1)
	assert.Equal(t, Failure{ID: "p1", Op: OpRemove, Err: errOffline}, view.Failures()[0])

	view.Dismiss("p1")
	assert.Empty(t, view.Failures())
	assert.ErrorIs(t, view.Retry(context.Background(), "p1"), store.ErrNotFound)

	source.setFail(OpRemove, nil)
	require.NoError(t, view.Remove(context.Background(), "p1"))
	assert.Equal(t, []string{"p2"}, ids(view.Packing()))
	assert.ErrorIs(t, view.Remove(context.Background(), "p1"), store.ErrNotFound)
}

func TestTripTogglePacked(t *testing.T) {
	view, source := newTripView(t)

	require.NoError(t, view.TogglePacked(context.Background(), "p2"))
	assert.True(t, view.Packing()[1].Packed)

	source.setFail(OpToggle, errOffline)
	assert.Error(t, view.TogglePacked(context.Background(), "p2"))
	assert.True(t, view.Packing()[1].Packed)
	require.Len(t, view.Failures(), 1)
	assert.Equal(t, OpToggle, view.Failures()[0].Op)

	source.setFail(OpToggle, nil)
	require.NoError(t, view.Retry(context.Background(), "p2"))
	assert.False(t, view.Packing()[1].Packed)
	assert.Empty(t, view.Failures())
}

func TestTripRejectPolicyDoesNotRecordFailure(t *testing.T) {
	source := newFakeTrip()
	source.gate = make(chan struct{})
	coord := optimistic.New(optimistic.Reject, quietLogger())
	view := NewTripListView(source, coord, "trip-1", quietLogger())
	require.NoError(t, view.Load(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := view.Add(context.Background(), trip.PackingDraft{Name: "rope"})
		done <- err
	}()
	require.Eventually(t, func() bool { return len(view.Packing()) == 3 }, time.Second, time.Millisecond)

	pending := view.Packing()[2].ID
	err := view.Remove(context.Background(), pending)
	assert.True(t, errors.Is(err, optimistic.ErrInFlight))
	assert.Empty(t, view.Failures())

	close(source.gate)
	require.NoError(t, <-done)
}
