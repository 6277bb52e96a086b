// Package redisstore is the remote store on Redis.
// Multi-key writes run as WATCH/MULTI/EXEC optimistic transactions.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// watchAttempts bounds the internal retry of list writes that lose a WATCH race.
// Votes are retried by the vote service instead, so CastVote runs once.
const watchAttempts = 3

// Store implements store.Store, vote.Ledger and counter adjustment on one Redis database.
type Store struct {
	rdb redis.UniversalClient
	now func() time.Time

	// beforeExec runs between the reads and EXEC of a transaction. Tests use it to force races.
	beforeExec func(ctx context.Context)
}

func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.rdb.Ping(ctx).Err())
}

// --- List data ---

func (s *Store) List(ctx context.Context, resource string) ([]store.Record, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(resource), 0, -1).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(ids) == 0 {
		return []store.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(resource, id)
	}
	bodies, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify(err)
	}

	records := make([]store.Record, 0, len(ids))
	for i, body := range bodies {
		str, ok := body.(string)
		if !ok {
			// index entry whose document is gone
			continue
		}
		records = append(records, store.Record{ID: ids[i], Data: json.RawMessage(str)})
	}
	return records, nil
}

func (s *Store) Add(ctx context.Context, resource string, data json.RawMessage) (string, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot generate id: %w", err)
	}
	id := uid.String()

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(resource, id), string(data), 0)
		pipe.ZAdd(ctx, indexKey(resource), redis.Z{Score: float64(s.now().UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, resource, id string, patch map[string]any) error {
	key := docKey(resource, id)
	return s.watchRetry(ctx, func(tx *redis.Tx) error {
		data, err := readDocument(ctx, tx, resource, id)
		if err != nil {
			return err
		}
		merged, err := store.Merge(data, patch)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalid, err)
		}
		s.hook(ctx)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(merged), redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

// Remove deletes the document, its index entry and every vote record on it in one MULTI.
func (s *Store) Remove(ctx context.Context, resource, id string) error {
	dKey, vKey := docKey(resource, id), votersKey(resource, id)
	return s.watchRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, dKey).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
		}
		voters, err := tx.SMembers(ctx, vKey).Result()
		if err != nil {
			return err
		}

		s.hook(ctx)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, dKey)
			pipe.ZRem(ctx, indexKey(resource), id)
			for _, userID := range voters {
				pipe.Del(ctx, voteKey(resource, vote.RecordKey(id, userID)))
			}
			pipe.Del(ctx, vKey)
			return nil
		})
		return err
	}, dKey, vKey)
}

// --- Ledger ---

// CastVote runs one optimistic transaction watching the document and the user's vote record.
// A concurrent write to either returns store.ErrConflict.
func (s *Store) CastVote(ctx context.Context, resource, contentID, userID string, requested vote.Type) (vote.Outcome, error) {
	dKey := docKey(resource, contentID)
	vKey := voteKey(resource, vote.RecordKey(contentID, userID))

	var out vote.Outcome
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		// 1. Read the aggregate and the user's record
		data, err := readDocument(ctx, tx, resource, contentID)
		if err != nil {
			return err
		}
		agg, err := store.ReadAggregate(data)
		if err != nil {
			return err
		}
		existing, found, err := readVoteRecord(ctx, tx, vKey)
		if err != nil {
			return err
		}
		current := vote.StateNone
		createdAt := s.now().UTC()
		if found {
			current = vote.StateOf(existing.Type)
			createdAt = existing.CreatedAt
		}

		// 2. Compute the transition
		plan, err := vote.PlanVote(current, agg, requested)
		if err != nil {
			return err
		}
		updated, err := store.WriteAggregate(data, plan.Aggregate)
		if err != nil {
			return err
		}
		var record []byte
		if plan.Keep {
			record, err = json.Marshal(vote.Record{
				ContentID: contentID,
				UserID:    userID,
				Type:      plan.RecordType,
				CreatedAt: createdAt,
			})
			if err != nil {
				return err
			}
		}

		// 3. Write document and record together
		s.hook(ctx)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dKey, string(updated), redis.KeepTTL)
			if plan.Keep {
				pipe.Set(ctx, vKey, string(record), 0)
				pipe.SAdd(ctx, votersKey(resource, contentID), userID)
			} else {
				pipe.Del(ctx, vKey)
				pipe.SRem(ctx, votersKey(resource, contentID), userID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		out = vote.Outcome{Aggregate: plan.Aggregate, State: plan.Next}
		return nil
	}, dKey, vKey)
	if err != nil {
		return vote.Outcome{}, classify(err)
	}
	return out, nil
}

func (s *Store) VoteState(ctx context.Context, resource, contentID, userID string) (vote.State, error) {
	state, err := readVoteState(ctx, s.rdb, voteKey(resource, vote.RecordKey(contentID, userID)))
	if err != nil {
		return vote.StateNone, classify(err)
	}
	return state, nil
}

// AdjustCounter changes a directly adjustable counter (commentCount) atomically.
func (s *Store) AdjustCounter(ctx context.Context, resource, contentID, field string, delta int) (store.Aggregate, error) {
	key := docKey(resource, contentID)
	var out store.Aggregate
	err := s.watchRetry(ctx, func(tx *redis.Tx) error {
		data, err := readDocument(ctx, tx, resource, contentID)
		if err != nil {
			return err
		}
		agg, err := store.ReadAggregate(data)
		if err != nil {
			return err
		}
		if agg, err = agg.AdjustField(field, delta); err != nil {
			return err
		}
		updated, err := store.WriteAggregate(data, agg)
		if err != nil {
			return err
		}
		s.hook(ctx)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(updated), redis.KeepTTL)
			return nil
		})
		if err == nil {
			out = agg
		}
		return err
	}, key)
	return out, err
}

// --- helpers ---

// watchRetry runs fn under WATCH, retrying lost races a few times before reporting a conflict.
func (s *Store) watchRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for range watchAttempts {
		err = s.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return classify(err)
}

func (s *Store) hook(ctx context.Context) {
	if s.beforeExec != nil {
		s.beforeExec(ctx)
	}
}

// getter is the read side shared by the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readDocument(ctx context.Context, c getter, resource, id string) (json.RawMessage, error) {
	body, err := c.Get(ctx, docKey(resource, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func readVoteState(ctx context.Context, c getter, key string) (vote.State, error) {
	rec, found, err := readVoteRecord(ctx, c, key)
	if err != nil || !found {
		return vote.StateNone, err
	}
	return vote.StateOf(rec.Type), nil
}

func readVoteRecord(ctx context.Context, c getter, key string) (vote.Record, bool, error) {
	body, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return vote.Record{}, false, nil
	}
	if err != nil {
		return vote.Record{}, false, err
	}
	var rec vote.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return vote.Record{}, false, fmt.Errorf("%w: corrupt vote record %s: %v", store.ErrInvalid, key, err)
	}
	return rec, true, nil
}
