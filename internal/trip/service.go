package trip

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/sirupsen/logrus"
)

// Repository is list storage that can say which store currently serves a resource.
// The persistence gateway satisfies it.
type Repository interface {
	store.Store
	UsesLocalStore(resource string) bool
}

// PackingResource and MealResource name the store resources holding one trip's lists.
func PackingResource(tripID string) string { return "packing_items/" + tripID }
func MealResource(tripID string) string    { return "meals/" + tripID }

var slotOrder = map[Slot]int{SlotBreakfast: 0, SlotLunch: 1, SlotDinner: 2, SlotSnack: 3}

// Service manages the packing list and meal plan of trips.
type Service struct {
	repo Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewService(repo Repository, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func checkTripID(tripID string) error {
	if tripID == "" || strings.ContainsAny(tripID, "/:") {
		return fmt.Errorf("%w: bad trip id %q", store.ErrInvalid, tripID)
	}
	return nil
}

// Status reports which lists of a trip are on the local store.
func (s *Service) Status(tripID string) (StoreStatus, error) {
	if err := checkTripID(tripID); err != nil {
		return StoreStatus{}, err
	}
	return StoreStatus{
		PackingLocal: s.repo.UsesLocalStore(PackingResource(tripID)),
		MealsLocal:   s.repo.UsesLocalStore(MealResource(tripID)),
	}, nil
}

// --- Packing ---

// ListPacking returns packing items in the order they were added.
func (s *Service) ListPacking(ctx context.Context, tripID string) ([]PackingItem, error) {
	if err := checkTripID(tripID); err != nil {
		return nil, err
	}
	resource := PackingResource(tripID)
	records, err := s.repo.List(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	items := decodeList[PackingItem](resource, records, s.log)
	slices.SortStableFunc(items, func(a, b PackingItem) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return items, nil
}

func (s *Service) AddPacking(ctx context.Context, tripID string, d PackingDraft) (PackingItem, error) {
	if err := checkTripID(tripID); err != nil {
		return PackingItem{}, err
	}
	if d.Quantity == 0 {
		d.Quantity = 1
	}
	item := PackingItem{
		Name:      strings.TrimSpace(d.Name),
		Category:  strings.TrimSpace(d.Category),
		Quantity:  d.Quantity,
		CreatedAt: s.now().UTC(),
	}
	doc, err := encode(item)
	if err != nil {
		return PackingItem{}, err
	}

	resource := PackingResource(tripID)
	id, err := s.repo.Add(ctx, resource, doc)
	if err != nil {
		return PackingItem{}, fmt.Errorf("add %s: %w", resource, err)
	}
	item.ID = id
	return item, nil
}

// UpdatePacking applies a partial edit and returns the item as stored.
func (s *Service) UpdatePacking(ctx context.Context, tripID, id string, patch PackingPatch) (PackingItem, error) {
	if err := checkTripID(tripID); err != nil {
		return PackingItem{}, err
	}
	fields, err := patchFields(patch)
	if err != nil {
		return PackingItem{}, err
	}
	return updateOne[PackingItem](ctx, s, PackingResource(tripID), id, fields)
}

// SetPacked marks an item packed or unpacked.
func (s *Service) SetPacked(ctx context.Context, tripID, id string, packed bool) (PackingItem, error) {
	return s.UpdatePacking(ctx, tripID, id, PackingPatch{Packed: &packed})
}

func (s *Service) RemovePacking(ctx context.Context, tripID, id string) error {
	if err := checkTripID(tripID); err != nil {
		return err
	}
	return s.remove(ctx, PackingResource(tripID), id)
}

// --- Meals ---

// ListMeals returns meals by day, then slot, then creation time.
func (s *Service) ListMeals(ctx context.Context, tripID string) ([]Meal, error) {
	if err := checkTripID(tripID); err != nil {
		return nil, err
	}
	resource := MealResource(tripID)
	records, err := s.repo.List(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	meals := decodeList[Meal](resource, records, s.log)
	slices.SortStableFunc(meals, func(a, b Meal) int {
		if a.Day != b.Day {
			return a.Day - b.Day
		}
		if a.Slot != b.Slot {
			return slotOrder[a.Slot] - slotOrder[b.Slot]
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return meals, nil
}

func (s *Service) AddMeal(ctx context.Context, tripID string, d MealDraft) (Meal, error) {
	if err := checkTripID(tripID); err != nil {
		return Meal{}, err
	}
	meal := Meal{
		Day:       d.Day,
		Slot:      d.Slot,
		Name:      strings.TrimSpace(d.Name),
		Notes:     d.Notes,
		CreatedAt: s.now().UTC(),
	}
	doc, err := encode(meal)
	if err != nil {
		return Meal{}, err
	}

	resource := MealResource(tripID)
	id, err := s.repo.Add(ctx, resource, doc)
	if err != nil {
		return Meal{}, fmt.Errorf("add %s: %w", resource, err)
	}
	meal.ID = id
	return meal, nil
}

func (s *Service) UpdateMeal(ctx context.Context, tripID, id string, patch MealPatch) (Meal, error) {
	if err := checkTripID(tripID); err != nil {
		return Meal{}, err
	}
	fields, err := patchFields(patch)
	if err != nil {
		return Meal{}, err
	}
	return updateOne[Meal](ctx, s, MealResource(tripID), id, fields)
}

func (s *Service) RemoveMeal(ctx context.Context, tripID, id string) error {
	if err := checkTripID(tripID); err != nil {
		return err
	}
	return s.remove(ctx, MealResource(tripID), id)
}

// --- helpers ---

func (s *Service) remove(ctx context.Context, resource, id string) error {
	if err := s.repo.Remove(ctx, resource, id); err != nil {
		return fmt.Errorf("remove %s/%s: %w", resource, id, err)
	}
	return nil
}

// updateOne writes fields to one document and reads it back.
func updateOne[T any, PT entity[T]](ctx context.Context, s *Service, resource, id string, fields map[string]any) (T, error) {
	var zero T
	if err := s.repo.Update(ctx, resource, id, fields); err != nil {
		return zero, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	records, err := s.repo.List(ctx, resource)
	if err != nil {
		return zero, fmt.Errorf("list %s: %w", resource, err)
	}
	r, ok := store.Find(records, id)
	if !ok {
		return zero, fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
	}
	return decode[T, PT](r)
}
