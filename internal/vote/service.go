package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Ledger executes vote transitions atomically against the authoritative store.
// One CastVote call is one transaction attempt: a lost race returns store.ErrConflict.
type Ledger interface {
	CastVote(ctx context.Context, resource, contentID, userID string, requested Type) (Outcome, error)
	VoteState(ctx context.Context, resource, contentID, userID string) (State, error)
}

// RetryPolicy bounds how often a conflicting vote transaction is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors the short retry loop of the vote processor: start small, double, cap.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: 8 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

// Service is the castVote entry point.
type Service struct {
	ledger Ledger
	retry  RetryPolicy
	log    logrus.FieldLogger
}

// NewService builds a vote service on top of a ledger (usually the persistence gateway).
func NewService(ledger Ledger, retry RetryPolicy, log logrus.FieldLogger) *Service {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	return &Service{ledger: ledger, retry: retry, log: log}
}

// CastVote applies the transition table for (contentID, userID) and returns the updated aggregate.
// Conflicts are retried with exponential backoff up to RetryPolicy.MaxAttempts; every other
// failure is returned immediately and leaves the stored state untouched.
func (s *Service) CastVote(ctx context.Context, resource, contentID, userID string, requested Type) (Outcome, error) {
	// 1. Validate before touching the store
	if userID == "" {
		return Outcome{}, store.ErrUnauthenticated
	}
	if _, err := ParseType(string(requested)); err != nil {
		return Outcome{}, err
	}

	// 2. Run the transaction, retrying only lost races
	var out Outcome
	attempt := 0
	op := func() error {
		attempt++
		o, err := s.ledger.CastVote(ctx, resource, contentID, userID, requested)
		if err == nil {
			out = o
			return nil
		}
		if errors.Is(err, store.ErrConflict) {
			s.log.WithFields(logrus.Fields{
				"resource":   resource,
				"content_id": contentID,
				"user_id":    userID,
				"attempt":    attempt,
			}).Warn("vote transaction conflicted, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retry.MaxAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Outcome{}, fmt.Errorf("vote on %s/%s gave up after %d attempts: %w", resource, contentID, attempt, err)
		}
		return Outcome{}, err
	}
	return out, nil
}

// MyVote returns the caller's current state for one item.
func (s *Service) MyVote(ctx context.Context, resource, contentID, userID string) (State, error) {
	if userID == "" {
		return StateNone, store.ErrUnauthenticated
	}
	return s.ledger.VoteState(ctx, resource, contentID, userID)
}
