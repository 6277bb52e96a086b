package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/SlpAus/trailhead-backend/internal/optimistic"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/trip"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// pendingPrefix marks the id of an item that has not been stored yet.
const pendingPrefix = "pending-"

// TripSource is the trip persistence the list view needs. *trip.Service satisfies it.
type TripSource interface {
	ListPacking(ctx context.Context, tripID string) ([]trip.PackingItem, error)
	AddPacking(ctx context.Context, tripID string, d trip.PackingDraft) (trip.PackingItem, error)
	SetPacked(ctx context.Context, tripID, id string, packed bool) (trip.PackingItem, error)
	RemovePacking(ctx context.Context, tripID, id string) error
	ListMeals(ctx context.Context, tripID string) ([]trip.Meal, error)
	Status(tripID string) (trip.StoreStatus, error)
}

// Op names the list mutation that failed.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpToggle Op = "toggle_packed"
)

// Failure is a list mutation that was reverted and is waiting for the user to retry or dismiss it.
type Failure struct {
	ID  string `json:"id"`
	Op  Op     `json:"op"`
	Err error  `json:"-"`
}

type failureEntry struct {
	Failure
	retry func(ctx context.Context) error
}

// TripListView is the packing list and meal plan of one trip.
type TripListView struct {
	source TripSource
	coord  *optimistic.Coordinator
	log    logrus.FieldLogger
	tripID string

	mu       sync.RWMutex
	packing  []trip.PackingItem
	meals    []trip.Meal
	status   trip.StoreStatus
	failures []failureEntry
}

func NewTripListView(source TripSource, coord *optimistic.Coordinator, tripID string, log logrus.FieldLogger) *TripListView {
	return &TripListView{
		source: source,
		coord:  coord,
		log:    log.WithFields(logrus.Fields{"view": "trip", "trip_id": tripID}),
		tripID: tripID,
	}
}

// Load refreshes packing items, meals and store status together.
// Pending additions survive a reload.
func (v *TripListView) Load(ctx context.Context) error {
	var (
		packing []trip.PackingItem
		meals   []trip.Meal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		packing, err = v.source.ListPacking(gctx, v.tripID)
		return err
	})
	g.Go(func() error {
		var err error
		meals, err = v.source.ListMeals(gctx, v.tripID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	status, err := v.source.Status(v.tripID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, item := range v.packing {
		if isPending(item.ID) {
			packing = append(packing, item)
		}
	}
	v.packing = packing
	v.meals = meals
	v.status = status
	return nil
}

// --- Snapshots ---

func (v *TripListView) Packing() []trip.PackingItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.packing)
}

func (v *TripListView) Meals() []trip.Meal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.meals)
}

// Status is the store status seen on the last Load.
func (v *TripListView) Status() trip.StoreStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Failures lists unresolved failures, oldest first.
func (v *TripListView) Failures() []Failure {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Failure, len(v.failures))
	for i, f := range v.failures {
		out[i] = f.Failure
	}
	return out
}

// --- Mutations ---

// Add shows a pending item at once and replaces it with the stored item on success.
// It returns the pending id, which a Failure refers to if the add fails.
func (v *TripListView) Add(ctx context.Context, d trip.PackingDraft) (string, error) {
	pendingID := pendingPrefix + uuid.NewString()
	return pendingID, v.add(ctx, pendingID, d)
}

func (v *TripListView) add(ctx context.Context, pendingID string, d trip.PackingDraft) error {
	quantity := d.Quantity
	if quantity == 0 {
		quantity = 1
	}
	cmd := optimistic.Funcs{
		ID: pendingID,
		PredictFn: func() {
			v.mu.Lock()
			v.packing = append(v.packing, trip.PackingItem{ID: pendingID, Name: d.Name, Category: d.Category, Quantity: quantity})
			v.mu.Unlock()
		},
		CommitFn: func(ctx context.Context) error {
			stored, err := v.source.AddPacking(ctx, v.tripID, d)
			if err != nil {
				return err
			}
			v.replace(pendingID, stored)
			return nil
		},
		RollbackFn: func() {
			v.mu.Lock()
			v.packing = slices.DeleteFunc(v.packing, func(item trip.PackingItem) bool { return item.ID == pendingID })
			v.mu.Unlock()
		},
	}
	return v.apply(ctx, cmd, OpAdd, func(ctx context.Context) error { return v.add(ctx, pendingID, d) })
}

// Remove hides the item at once and restores it in place if the store refuses.
func (v *TripListView) Remove(ctx context.Context, id string) error {
	if _, ok := v.find(id); !ok {
		return fmt.Errorf("%w: packing item %s", store.ErrNotFound, id)
	}

	var (
		removed trip.PackingItem
		at      = -1
	)
	cmd := optimistic.Funcs{
		ID: id,
		PredictFn: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			at = v.indexLocked(id)
			if at >= 0 {
				removed = v.packing[at]
				v.packing = slices.Delete(v.packing, at, at+1)
			}
		},
		CommitFn: func(ctx context.Context) error {
			return v.source.RemovePacking(ctx, v.tripID, id)
		},
		RollbackFn: func() {
			if at < 0 {
				return
			}
			v.mu.Lock()
			defer v.mu.Unlock()
			v.packing = slices.Insert(v.packing, min(at, len(v.packing)), removed)
		},
	}
	return v.apply(ctx, cmd, OpRemove, func(ctx context.Context) error { return v.Remove(ctx, id) })
}

// TogglePacked flips the packed flag at once and persists the new value.
func (v *TripListView) TogglePacked(ctx context.Context, id string) error {
	if _, ok := v.find(id); !ok {
		return fmt.Errorf("%w: packing item %s", store.ErrNotFound, id)
	}

	var previous bool
	cmd := optimistic.Funcs{
		ID: id,
		PredictFn: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if i := v.indexLocked(id); i >= 0 {
				previous = v.packing[i].Packed
				v.packing[i].Packed = !previous
			}
		},
		CommitFn: func(ctx context.Context) error {
			stored, err := v.source.SetPacked(ctx, v.tripID, id, !previous)
			if err != nil {
				return err
			}
			v.replace(id, stored)
			return nil
		},
		RollbackFn: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if i := v.indexLocked(id); i >= 0 {
				v.packing[i].Packed = previous
			}
		},
	}
	return v.apply(ctx, cmd, OpToggle, func(ctx context.Context) error { return v.TogglePacked(ctx, id) })
}

// --- Failures ---

// Retry re-runs a failed mutation. A new failure replaces the old one.
func (v *TripListView) Retry(ctx context.Context, id string) error {
	v.mu.Lock()
	i := slices.IndexFunc(v.failures, func(f failureEntry) bool { return f.ID == id })
	if i < 0 {
		v.mu.Unlock()
		return fmt.Errorf("%w: no failure for %s", store.ErrNotFound, id)
	}
	entry := v.failures[i]
	v.failures = slices.Delete(v.failures, i, i+1)
	v.mu.Unlock()

	return entry.retry(ctx)
}

// Dismiss forgets a failure without retrying it.
func (v *TripListView) Dismiss(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures = slices.DeleteFunc(v.failures, func(f failureEntry) bool { return f.ID == id })
}

// --- helpers ---

func (v *TripListView) apply(ctx context.Context, cmd optimistic.Command, op Op, retry func(context.Context) error) error {
	err := v.coord.Apply(ctx, cmd)
	if err == nil || errors.Is(err, optimistic.ErrInFlight) {
		// nothing was predicted for a rejected command
		return err
	}
	v.log.WithFields(logrus.Fields{"id": cmd.Key(), "op": op}).WithError(err).Warn("list change reverted")

	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures = slices.DeleteFunc(v.failures, func(f failureEntry) bool { return f.ID == cmd.Key() })
	v.failures = append(v.failures, failureEntry{
		Failure: Failure{ID: cmd.Key(), Op: op, Err: err},
		retry:   retry,
	})
	return err
}

// replace swaps the row id for item. A pending row whose stored item a reload already
// brought in is dropped instead.
func (v *TripListView) replace(id string, item trip.PackingItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexLocked(id)
	if i < 0 {
		return
	}
	if id != item.ID && v.indexLocked(item.ID) >= 0 {
		v.packing = slices.Delete(v.packing, i, i+1)
		return
	}
	v.packing[i] = item
}

func (v *TripListView) find(id string) (trip.PackingItem, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := v.indexLocked(id); i >= 0 {
		return v.packing[i], true
	}
	return trip.PackingItem{}, false
}

func (v *TripListView) indexLocked(id string) int {
	return slices.IndexFunc(v.packing, func(item trip.PackingItem) bool { return item.ID == id })
}

func isPending(id string) bool {
	return strings.HasPrefix(id, pendingPrefix)
}
