package content

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/ranking"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/sirupsen/logrus"
)

// Repository is the persistence the content service needs: list data plus direct counter adjustment.
// The persistence gateway satisfies it.
type Repository interface {
	store.Store
	AdjustCounter(ctx context.Context, resource, contentID, field string, delta int) (store.Aggregate, error)
}

// Service reads and writes content items of every type.
type Service struct {
	repo Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewService creates a content service.
func NewService(repo Repository, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// --- Reads ---

// Feed returns the items of one type in ranked order.
// Documents that fail validation are logged and left out.
func (s *Service) Feed(ctx context.Context, t Type, mode ranking.Mode, includeHidden bool) ([]Item, error) {
	records, err := s.repo.List(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	items, quarantined := DecodeAll(t, records)
	for _, q := range quarantined {
		s.log.WithFields(logrus.Fields{
			"resource":   t,
			"content_id": q.ID,
		}).Warnf("quarantined content document: %s", q.Reason)
	}

	byID := make(map[string]Item, len(items))
	entries := make([]ranking.Entry, 0, len(items))
	for _, item := range items {
		if item.Hidden && !includeHidden {
			continue
		}
		byID[item.ID] = item
		entries = append(entries, ranking.Entry{ID: item.ID, Score: item.Score, CreatedAt: item.CreatedAt})
	}

	ordered := ranking.Order(entries, mode, s.now())
	feed := make([]Item, len(ordered))
	for i, id := range ordered {
		feed[i] = byID[id]
	}
	return feed, nil
}

// Get returns one item. A document that fails validation reads as ErrInvalid.
func (s *Service) Get(ctx context.Context, t Type, id string) (Item, error) {
	records, err := s.repo.List(ctx, string(t))
	if err != nil {
		return Item{}, fmt.Errorf("list %s: %w", t, err)
	}
	r, ok := store.Find(records, id)
	if !ok {
		return Item{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, t, id)
	}
	return Decode(t, r)
}

// --- Writes ---

// Create stores a new item authored by authorID. Counters always start at zero.
func (s *Service) Create(ctx context.Context, t Type, authorID string, d Draft) (Item, error) {
	if authorID == "" {
		return Item{}, store.ErrUnauthenticated
	}
	now := s.now()
	doc, err := NewDocument(t, authorID, d, now)
	if err != nil {
		return Item{}, err
	}

	id, err := s.repo.Add(ctx, string(t), doc)
	if err != nil {
		return Item{}, fmt.Errorf("add %s: %w", t, err)
	}
	return Decode(t, store.Record{ID: id, Data: doc})
}

// Update applies an author edit. Counters and identity fields cannot be patched.
func (s *Service) Update(ctx context.Context, t Type, id, userID string, patch map[string]any) (Item, error) {
	if userID == "" {
		return Item{}, store.ErrUnauthenticated
	}
	if err := CheckPatch(patch); err != nil {
		return Item{}, err
	}

	// 1. Load the current document and check ownership
	records, err := s.repo.List(ctx, string(t))
	if err != nil {
		return Item{}, fmt.Errorf("list %s: %w", t, err)
	}
	r, ok := store.Find(records, id)
	if !ok {
		return Item{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, t, id)
	}
	current, err := Decode(t, r)
	if err != nil {
		return Item{}, err
	}
	if current.AuthorID != userID {
		return Item{}, fmt.Errorf("%w: only the author may edit %s/%s", store.ErrForbidden, t, id)
	}

	// 2. Validate the merged result before writing anything
	merged, err := store.Merge(r.Data, patch)
	if err != nil {
		return Item{}, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	next, err := Decode(t, store.Record{ID: id, Data: merged})
	if err != nil {
		return Item{}, err
	}

	// 3. Persist
	if err := s.repo.Update(ctx, string(t), id, patch); err != nil {
		return Item{}, fmt.Errorf("update %s/%s: %w", t, id, err)
	}
	return next, nil
}

// Delete removes an item and, on the remote store, all of its vote records. Only the author may delete.
func (s *Service) Delete(ctx context.Context, t Type, id, userID string) error {
	if userID == "" {
		return store.ErrUnauthenticated
	}
	item, err := s.Get(ctx, t, id)
	if err != nil {
		return err
	}
	if item.AuthorID != userID {
		return fmt.Errorf("%w: only the author may delete %s/%s", store.ErrForbidden, t, id)
	}
	if err := s.repo.Remove(ctx, string(t), id); err != nil {
		return fmt.Errorf("remove %s/%s: %w", t, id, err)
	}
	s.log.WithFields(logrus.Fields{"resource": t, "content_id": id, "user_id": userID}).Info("content item deleted")
	return nil
}

// RecordComment bumps commentCount after a comment was created elsewhere.
func (s *Service) RecordComment(ctx context.Context, t Type, id string) (store.Aggregate, error) {
	return s.adjustComments(ctx, t, id, 1)
}

// RemoveComment lowers commentCount, never below zero.
func (s *Service) RemoveComment(ctx context.Context, t Type, id string) (store.Aggregate, error) {
	return s.adjustComments(ctx, t, id, -1)
}

func (s *Service) adjustComments(ctx context.Context, t Type, id string, delta int) (store.Aggregate, error) {
	agg, err := s.repo.AdjustCounter(ctx, string(t), id, store.FieldCommentCount, delta)
	if err != nil {
		return store.Aggregate{}, fmt.Errorf("adjust comments on %s/%s: %w", t, id, err)
	}
	return agg, nil
}
