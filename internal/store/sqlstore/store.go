// Package sqlstore is the remote store on a relational database through GORM.
// PostgreSQL is the production target; SQLite serves single-node setups and tests.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements store.Store, vote.Ledger and counter adjustment on one database.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates or updates the documents and vote_records tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Document{}, &VoteRecord{}); err != nil {
		return fmt.Errorf("cannot migrate remote tables: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return Classify(err)
	}
	return Classify(sqlDB.PingContext(ctx))
}

// --- List data ---

func (s *Store) List(ctx context.Context, resource string) ([]store.Record, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("resource = ?", resource).
		Order("created_at ASC, id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, Classify(err)
	}

	records := make([]store.Record, len(docs))
	for i, d := range docs {
		records[i] = store.Record{ID: d.ID, Data: json.RawMessage(d.Data)}
	}
	return records, nil
}

func (s *Store) Add(ctx context.Context, resource string, data json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot generate id: %w", err)
	}
	now := s.now()
	doc := Document{
		Resource:  resource,
		ID:        id.String(),
		Data:      string(data),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return "", Classify(err)
	}
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, resource, id string, patch map[string]any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := lockDocument(tx, resource, id)
		if err != nil {
			return err
		}
		merged, err := store.Merge(json.RawMessage(doc.Data), patch)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalid, err)
		}
		return s.saveDocument(tx, doc, merged)
	})
	return Classify(err)
}

// Remove deletes the document and every vote record attached to it in one transaction.
func (s *Store) Remove(ctx context.Context, resource, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockDocument(tx, resource, id); err != nil {
			return err
		}
		if err := tx.Where("resource = ? AND content_id = ?", resource, id).Delete(&VoteRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("resource = ? AND id = ?", resource, id).Delete(&Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: document %s/%s vanished during delete", store.ErrConflict, resource, id)
		}
		return nil
	})
	return Classify(err)
}

// --- Ledger ---

// CastVote reads the aggregate and the user's record, applies the transition and writes both back
// inside one transaction. The document row is locked and its version checked on write.
func (s *Store) CastVote(ctx context.Context, resource, contentID, userID string, requested vote.Type) (vote.Outcome, error) {
	var out vote.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the content document and read its counters
		doc, err := lockDocument(tx, resource, contentID)
		if err != nil {
			return err
		}
		agg, err := store.ReadAggregate(json.RawMessage(doc.Data))
		if err != nil {
			return err
		}

		// 2. Read the user's current record inside the same transaction
		var rec VoteRecord
		current := vote.StateNone
		err = tx.Where("resource = ? AND content_id = ? AND user_id = ?", resource, contentID, userID).First(&rec).Error
		switch {
		case err == nil:
			current = vote.StateOf(vote.Type(rec.VoteType))
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		// 3. Compute and apply
		plan, err := vote.PlanVote(current, agg, requested)
		if err != nil {
			return err
		}
		data, err := store.WriteAggregate(json.RawMessage(doc.Data), plan.Aggregate)
		if err != nil {
			return err
		}
		if err := s.saveDocument(tx, doc, data); err != nil {
			return err
		}

		// 4. Write, switch or delete the vote record
		switch {
		case !plan.Keep:
			err = tx.Delete(&rec).Error
		case current == vote.StateNone:
			err = tx.Create(&VoteRecord{
				Resource:  resource,
				ContentID: contentID,
				UserID:    userID,
				VoteType:  string(plan.RecordType),
				CreatedAt: s.now(),
			}).Error
		default:
			err = tx.Model(&rec).Update("vote_type", string(plan.RecordType)).Error
		}
		if err != nil {
			return err
		}

		out = vote.Outcome{Aggregate: plan.Aggregate, State: plan.Next}
		return nil
	})
	if err != nil {
		return vote.Outcome{}, Classify(err)
	}
	return out, nil
}

func (s *Store) VoteState(ctx context.Context, resource, contentID, userID string) (vote.State, error) {
	var rec VoteRecord
	err := s.db.WithContext(ctx).
		Where("resource = ? AND content_id = ? AND user_id = ?", resource, contentID, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vote.StateNone, nil
	}
	if err != nil {
		return vote.StateNone, Classify(err)
	}
	return vote.StateOf(vote.Type(rec.VoteType)), nil
}

// AdjustCounter changes a directly adjustable counter (commentCount) atomically.
func (s *Store) AdjustCounter(ctx context.Context, resource, contentID, field string, delta int) (store.Aggregate, error) {
	var out store.Aggregate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := lockDocument(tx, resource, contentID)
		if err != nil {
			return err
		}
		agg, err := store.ReadAggregate(json.RawMessage(doc.Data))
		if err != nil {
			return err
		}
		if out, err = agg.AdjustField(field, delta); err != nil {
			return err
		}
		data, err := store.WriteAggregate(json.RawMessage(doc.Data), out)
		if err != nil {
			return err
		}
		return s.saveDocument(tx, doc, data)
	})
	if err != nil {
		return store.Aggregate{}, Classify(err)
	}
	return out, nil
}

// --- helpers ---

func lockDocument(tx *gorm.DB, resource, id string) (Document, error) {
	var doc Document
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("resource = ? AND id = ?", resource, id).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
	}
	return doc, err
}

// saveDocument writes data if the row still carries the version that was read.
func (s *Store) saveDocument(tx *gorm.DB, doc Document, data json.RawMessage) error {
	res := tx.Model(&Document{}).
		Where("resource = ? AND id = ? AND version = ?", doc.Resource, doc.ID, doc.Version).
		Updates(map[string]any{
			"data":       string(data),
			"version":    doc.Version + 1,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s changed since version %d", store.ErrConflict, doc.Resource, doc.ID, doc.Version)
	}
	return nil
}
