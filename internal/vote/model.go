package vote

import (
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
)

// Type is the direction of a requested vote.
type Type string

const (
	// Up is an upvote request.
	Up Type = "up"
	// Down is a downvote request.
	Down Type = "down"
)

// ParseType validates a vote direction coming from a request body.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Up, Down:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: vote type must be %q or %q, got %q", store.ErrInvalid, Up, Down, s)
	}
}

// State is a user's current vote on one item. The absence of a Record is StateNone.
type State string

const (
	StateNone State = "none"
	StateUp   State = "up"
	StateDown State = "down"
)

// StateOf returns the state a stored record represents.
func StateOf(t Type) State {
	switch t {
	case Up:
		return StateUp
	case Down:
		return StateDown
	default:
		return StateNone
	}
}

// Record is the stored preference of one user for one content item.
// At most one Record exists per (ContentID, UserID).
type Record struct {
	ContentID string    `json:"contentId"`
	UserID    string    `json:"userId"`
	Type      Type      `json:"voteType"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordKey is the composite document key of a vote record.
func RecordKey(contentID, userID string) string {
	return contentID + "_" + userID
}

// Outcome is what an atomic vote transaction produced.
type Outcome struct {
	Aggregate store.Aggregate `json:"aggregate"`
	State     State           `json:"state"`
}
