package store

import (
	"encoding/json"
	"fmt"
)

// --- Counter fields ---
// The score aggregate lives inside each content document under these keys.
// Only the ledger may write them.
const (
	FieldUpvoteCount   = "upvoteCount"
	FieldDownvoteCount = "downvoteCount"
	FieldScore         = "score"
	FieldCommentCount  = "commentCount"
)

// CounterFields lists every field owned by the engine.
var CounterFields = []string{FieldUpvoteCount, FieldDownvoteCount, FieldScore, FieldCommentCount}

// Aggregate is the denormalized counter set attached to a content item.
type Aggregate struct {
	UpvoteCount   int `json:"upvoteCount"`
	DownvoteCount int `json:"downvoteCount"`
	Score         int `json:"score"`
	CommentCount  int `json:"commentCount"`
}

// Consistent reports whether the aggregate satisfies score == up - down with non-negative counters.
func (a Aggregate) Consistent() bool {
	return a.UpvoteCount >= 0 && a.DownvoteCount >= 0 && a.CommentCount >= 0 &&
		a.Score == a.UpvoteCount-a.DownvoteCount
}

// ReadAggregate extracts the counters from a document body. Missing counters read as zero.
func ReadAggregate(data json.RawMessage) (Aggregate, error) {
	var agg Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return Aggregate{}, fmt.Errorf("%w: cannot read counters: %v", ErrInvalid, err)
	}
	return agg, nil
}

// WriteAggregate stores the counters into a document body, keeping every other field.
func WriteAggregate(data json.RawMessage, agg Aggregate) (json.RawMessage, error) {
	return Merge(data, map[string]any{
		FieldUpvoteCount:   agg.UpvoteCount,
		FieldDownvoteCount: agg.DownvoteCount,
		FieldScore:         agg.Score,
		FieldCommentCount:  agg.CommentCount,
	})
}

// AdjustField adds delta to one counter, clamping at zero. Only commentCount may be adjusted
// directly; vote counters move through the vote transition table.
func (a Aggregate) AdjustField(field string, delta int) (Aggregate, error) {
	switch field {
	case FieldCommentCount:
		a.CommentCount = max(0, a.CommentCount+delta)
		return a, nil
	default:
		return a, fmt.Errorf("%w: counter %q cannot be adjusted directly", ErrInvalid, field)
	}
}
