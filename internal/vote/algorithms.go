package vote

import (
	"fmt"

	"github.com/SlpAus/trailhead-backend/internal/store"
)

// Delta is the change a transition applies to the score aggregate.
type Delta struct {
	Up    int
	Down  int
	Score int
}

// --- Transition table ---
//
//	current  requested  next   Δup  Δdown  Δscore
//	none     up         up     +1    0     +1
//	none     down       down    0   +1     -1
//	up       up         none   -1    0     -1
//	down     down       none    0   -1     +1
//	up       down       down   -1   +1     -2
//	down     up         up     +1   -1     +2
//
// Voting the same direction twice toggles the vote off.

// Transition returns the next state and the counter delta for a requested vote.
func Transition(current State, requested Type) (State, Delta) {
	switch current {
	case StateUp:
		if requested == Up {
			return StateNone, Delta{Up: -1, Score: -1}
		}
		return StateDown, Delta{Up: -1, Down: 1, Score: -2}
	case StateDown:
		if requested == Down {
			return StateNone, Delta{Down: -1, Score: 1}
		}
		return StateUp, Delta{Up: 1, Down: -1, Score: 2}
	default:
		if requested == Up {
			return StateUp, Delta{Up: 1, Score: 1}
		}
		return StateDown, Delta{Down: 1, Score: -1}
	}
}

// Apply adds the delta to an aggregate.
func (d Delta) Apply(a store.Aggregate) store.Aggregate {
	a.UpvoteCount += d.Up
	a.DownvoteCount += d.Down
	a.Score += d.Score
	return a
}

// Plan is the full effect of one vote: the new aggregate, the new state, and what to
// do with the user's vote record. Backends execute a Plan inside one atomic unit.
type Plan struct {
	Next      State
	Aggregate store.Aggregate
	// Keep is false when the record must be deleted (toggle off).
	Keep bool
	// RecordType is the stored direction when Keep is true.
	RecordType Type
}

// PlanVote computes the effects of requesting a vote given what the backend just read.
// Counters that would drop below zero mean the ledger and aggregate disagree; the plan
// is rejected rather than persisting a negative count.
func PlanVote(current State, agg store.Aggregate, requested Type) (Plan, error) {
	next, delta := Transition(current, requested)
	updated := delta.Apply(agg)
	updated.Score = updated.UpvoteCount - updated.DownvoteCount
	if updated.UpvoteCount < 0 || updated.DownvoteCount < 0 {
		return Plan{}, fmt.Errorf("%w: vote %s from state %s would leave negative counters %+v",
			store.ErrInvalid, requested, current, updated)
	}
	p := Plan{Next: next, Aggregate: updated, Keep: next != StateNone}
	if p.Keep {
		p.RecordType = Type(next)
	}
	return p, nil
}
